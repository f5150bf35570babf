package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReusesAndEvicts(t *testing.T) {
	built := 0
	reg := NewRegistry(func() *Controller {
		built++
		return NewController(newFakeQuery(), &recordingNavigator{})
	}, time.Minute, nil)
	now := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	a, created := reg.Get("sess-a")
	require.True(t, created)
	again, created := reg.Get("sess-a")
	assert.False(t, created)
	assert.Same(t, a, again)

	now = now.Add(45 * time.Second)
	_, _ = reg.Get("sess-b")
	assert.Equal(t, 2, reg.Len())

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, reg.Sweep(), "only sess-a has been idle past the ttl")
	_, created = reg.Get("sess-a")
	assert.True(t, created)
	assert.Equal(t, 3, built)

	reg.Drop("sess-b")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	reg := NewRegistry(func() *Controller { return nil }, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry loop did not stop")
	}
}

func TestRegistryDefaultTTL(t *testing.T) {
	reg := NewRegistry(func() *Controller { return nil }, 0, nil)
	assert.Equal(t, DefaultIdleTTL, reg.ttl)
}
