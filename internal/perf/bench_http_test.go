package perf

import (
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/odyssey-erp/itasset/internal/assets"
	"github.com/odyssey-erp/itasset/internal/dashboard"
)

type instantQuery struct{}

func (instantQuery) FetchCategories(_ context.Context, kind assets.CategoryKind) ([]assets.CategoryRef, error) {
	if kind == assets.KindFleetCategory {
		return []assets.CategoryRef{{ID: 100, Name: "Truck"}}, nil
	}
	refs := make([]assets.CategoryRef, 0, 50)
	for i := int64(1); i <= 50; i++ {
		refs = append(refs, assets.CategoryRef{ID: i, Name: "Category", IsConsumable: i%10 == 0})
	}
	return refs, nil
}

func (instantQuery) FetchAggregateStats(context.Context, dashboard.Params) (assets.DashboardStats, error) {
	return assets.DashboardStats{StateCounts: assets.StateCounts{Total: 1000}}, nil
}

func newReadyController(tb testing.TB) *dashboard.Controller {
	tb.Helper()
	c := dashboard.NewController(instantQuery{}, dashboard.NavigatorFunc(func(context.Context, dashboard.ViewRequest) error { return nil }))
	if err := c.Initialize(context.Background()); err != nil {
		tb.Fatalf("initialize: %v", err)
	}
	return c
}

func TestControllerToggleLatencyTarget(t *testing.T) {
	c := newReadyController(t)
	ctx := context.Background()

	samples := make([]time.Duration, 0, 200)
	for i := 0; i < 200; i++ {
		id := int64(i%49 + 1)
		start := time.Now()
		if err := c.ToggleCategory(ctx, &id); err != nil {
			t.Fatalf("toggle %d: %v", id, err)
		}
		samples = append(samples, time.Since(start))
	}

	if p95 := percentile95(samples); p95 > 20*time.Millisecond {
		t.Fatalf("toggle latency regression: p95=%s threshold=20ms", p95)
	}
}

func BenchmarkControllerToggle(b *testing.B) {
	c := newReadyController(b)
	ctx := context.Background()
	id := int64(3)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.ToggleCategory(ctx, &id); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJSONRender(b *testing.B) {
	c := newReadyController(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Render(io.Discard, dashboard.JSONRenderer{}); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
