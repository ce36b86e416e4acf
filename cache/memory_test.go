package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/fieldgate/permission"
)

func sampleEntries() []*permission.Entry {
	return []*permission.Entry{
		{ModuleCode: "qlcp", FieldCode: "paymentStatus", RoleCode: "accountant", Level: permission.Write},
		{ModuleCode: "qlcp", FieldCode: "paymentStatus", RoleCode: "director", Level: permission.Admin},
	}
}

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	if _, ok := c.GetEntries(ctx, "qlcp"); ok {
		t.Fatal("expected cache miss")
	}

	c.SetEntries(ctx, "qlcp", 0, sampleEntries())
	got, ok := c.GetEntries(ctx, "qlcp")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[1].Level != permission.Admin {
		t.Fatalf("unexpected entries %+v", got)
	}

	// Callers cannot mutate the cached copy.
	got[1].Level = permission.Hidden
	again, _ := c.GetEntries(ctx, "qlcp")
	if again[1].Level != permission.Admin {
		t.Fatal("cached entries were mutated through a returned slice")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Millisecond))

	c.SetEntries(ctx, "qlcp", 0, sampleEntries())
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.GetEntries(ctx, "qlcp"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired module removed, got %d", c.Len())
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.SetEntries(ctx, "qlcp", 0, sampleEntries())
	c.SetEntries(ctx, "qlkh", 0, nil)

	c.InvalidateModule(ctx, "qlcp")
	if _, ok := c.GetEntries(ctx, "qlcp"); ok {
		t.Fatal("expected qlcp invalidated")
	}
	if _, ok := c.GetEntries(ctx, "qlkh"); !ok {
		t.Fatal("qlkh should survive invalidation of qlcp")
	}

	c.InvalidateAll(ctx)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	c.SetEntries(ctx, "qlkh", 0, nil)
	c.SetEntries(ctx, "qlcp", 0, nil)
	c.SetEntries(ctx, "qlns", 0, nil)

	if c.Len() != 2 {
		t.Fatalf("expected 2 cached modules, got %d", c.Len())
	}
	if _, ok := c.GetEntries(ctx, "qlns"); !ok {
		t.Fatal("most recent module should be cached")
	}
}

func TestMemoryCacheRefusesFillAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	gen, ok := c.Generation(ctx, "qlcp")
	if !ok {
		t.Fatal("expected a generation")
	}
	c.InvalidateModule(ctx, "qlcp")
	c.SetEntries(ctx, "qlcp", gen, sampleEntries())
	if _, ok := c.GetEntries(ctx, "qlcp"); ok {
		t.Fatal("fill loaded before the invalidation was cached")
	}

	gen, _ = c.Generation(ctx, "qlcp")
	c.InvalidateAll(ctx)
	c.SetEntries(ctx, "qlcp", gen, sampleEntries())
	if _, ok := c.GetEntries(ctx, "qlcp"); ok {
		t.Fatal("fill loaded before InvalidateAll was cached")
	}

	gen, _ = c.Generation(ctx, "qlcp")
	c.InvalidateModule(ctx, "qlkh")
	c.SetEntries(ctx, "qlcp", gen, sampleEntries())
	if _, ok := c.GetEntries(ctx, "qlcp"); !ok {
		t.Fatal("invalidating another module must not block the fill")
	}
}
