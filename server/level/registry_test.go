package level

import "testing"

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "FreeBuild", 4, 4, 4)
	if !conf.Registry.Add(l) {
		t.Fatal("add of a new level reported a duplicate")
	}
	if conf.Registry.Add(l) {
		t.Fatal("second add reported new")
	}
	got, ok := conf.Registry.Get("fReEbUiLd")
	if !ok || got != l {
		t.Fatal("case-insensitive lookup failed")
	}
	conf.Registry.Remove(l)
	if _, ok := conf.Registry.Get("freebuild"); ok {
		t.Fatal("level still registered after removal")
	}
}

func TestRegistryMainDesignation(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "hub", 4, 4, 4)
	conf.Registry.SetMain(l)
	if conf.Registry.Main() != l || !conf.Registry.IsMain(l) {
		t.Fatal("main designation not visible")
	}
	// SetMain registers the level as a side effect.
	if _, ok := conf.Registry.Get("hub"); !ok {
		t.Fatal("main level not registered")
	}
	conf.Registry.Remove(l)
	if conf.Registry.Main() != nil {
		t.Fatal("removing the main level kept the designation")
	}
}

func TestOnlineListPresence(t *testing.T) {
	o := NewOnlineList()
	a := newFakeActor("remy", RankGuest)
	a.level = "lobby"
	o.Add(a)

	if !o.AnyOn("lobby") {
		t.Fatal("presence check missed the actor")
	}
	if o.AnyOn("elsewhere") {
		t.Fatal("presence check matched the wrong level")
	}
	if got := o.OnLevel("lobby"); len(got) != 1 || got[0] != Actor(a) {
		t.Fatalf("OnLevel returned %v", got)
	}
	o.Remove(a)
	if o.AnyOn("lobby") {
		t.Fatal("actor present after removal")
	}
}
