package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestTable_TypedLookup(t *testing.T) {
	table := NewTable()

	h := table.Insert(1, "libm")
	if h == 0 {
		t.Fatal("Insert returned the reserved handle")
	}

	if v, ok := table.Lookup(h, 1); !ok || v != "libm" {
		t.Fatalf("Lookup = %v, %v", v, ok)
	}
	if _, ok := table.Lookup(h, 2); ok {
		t.Fatal("Lookup with the wrong type should fail")
	}
	if _, ok := table.Remove(h, 2); ok {
		t.Fatal("Remove with the wrong type should fail")
	}

	v, ok := table.Remove(h, 1)
	if !ok || v != "libm" {
		t.Fatalf("Remove = %v, %v", v, ok)
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d after Remove", table.Len())
	}
	if _, ok := table.Lookup(h, 1); ok {
		t.Fatal("removed handle still resolves")
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(1, "f")
	if len(obs.events) != 1 || obs.events[0].Type != EventCreated || obs.events[0].Handle != h {
		t.Fatalf("events after Insert: %+v", obs.events)
	}

	table.Remove(h, 1)
	if len(obs.events) != 2 || obs.events[1].Type != EventDropped || obs.events[1].TypeID != 1 {
		t.Fatalf("events after Remove: %+v", obs.events)
	}

	table.Remove(h, 1)
	if len(obs.events) != 2 {
		t.Fatal("removing a dead handle should not notify")
	}
}

func TestTable_RemoveDoesNotDrop(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h := table.Insert(1, d)
	table.Remove(h, 1)

	if d.count != 0 {
		t.Fatalf("Remove hands ownership to the caller, Drop called %d times", d.count)
	}
}

func TestTable_CloseDropsLive(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	d := &dropCounter{}
	table.Insert(1, d)
	table.Insert(1, "b")
	table.Insert(2, "c")
	obs.events = nil

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.count != 1 {
		t.Fatalf("Close should drop live values, got %d", d.count)
	}
	if len(obs.events) != 3 {
		t.Fatalf("Close reported %d drops, want 3", len(obs.events))
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d after Close", table.Len())
	}
	if h := table.Insert(1, "late"); h != 0 {
		t.Fatal("Insert after Close should fail")
	}
	if err := table.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
