package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/odyssey-erp/itasset/internal/assets"
	"github.com/odyssey-erp/itasset/internal/predicate"
)

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, req ViewRequest) error

// OpenListAndForm calls f.
func (f NavigatorFunc) OpenListAndForm(ctx context.Context, req ViewRequest) error {
	return f(ctx, req)
}

// ActionNavigator accepts view requests whose predicate compiles against the
// target entity and keeps the act-window descriptor of the last one for the
// client to follow.
type ActionNavigator struct {
	mu   sync.Mutex
	last *ActWindow
}

// OpenListAndForm validates req and records its descriptor.
func (n *ActionNavigator) OpenListAndForm(ctx context.Context, req ViewRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var columns predicate.Columns
	switch req.Entity {
	case assets.EntityAsset:
		columns = assets.AssetColumns
	case assets.EntityMaintenance:
		columns = assets.MaintenanceColumns
	default:
		return fmt.Errorf("navigator: unknown entity %q", req.Entity)
	}
	if _, err := req.Predicate.Sqlizer(columns); err != nil {
		return fmt.Errorf("navigator: %s: %w", req.Entity, err)
	}
	action := req.ActWindow()
	n.mu.Lock()
	n.last = &action
	n.mu.Unlock()
	return nil
}

// Last returns the most recently accepted descriptor.
func (n *ActionNavigator) Last() (ActWindow, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return ActWindow{}, false
	}
	return *n.last, true
}
