package mysqlconn

import "testing"

func TestPluginStorageInitializesOnce(t *testing.T) {
	id := RegisterPlugin("test-plugin-storage")
	c := New(Options{})

	calls := 0
	init := func() any {
		calls++
		return &struct{ n int }{n: 7}
	}

	v1 := c.PluginStorage(id, init)
	v2 := c.PluginStorage(id, init)

	if calls != 1 {
		t.Fatalf("init called %d times, want 1", calls)
	}
	if v1 != v2 {
		t.Fatalf("expected the same stored value across calls")
	}
}

func TestPluginStorageIsolatedPerConnection(t *testing.T) {
	id := RegisterPlugin("test-plugin-isolation")
	a := New(Options{})
	b := New(Options{})

	av := a.PluginStorage(id, func() any { return 1 })
	bv := b.PluginStorage(id, func() any { return 2 })

	if av == bv {
		t.Fatalf("expected per-connection storage, got shared value")
	}
}

func TestPluginCountIncreasesMonotonically(t *testing.T) {
	before := PluginCount()
	RegisterPlugin("test-plugin-count")
	after := PluginCount()
	if after != before+1 {
		t.Fatalf("PluginCount went from %d to %d, want +1", before, after)
	}
}
