package resource

import (
	"sync"
)

// Table holds the handles of one host. Every handle records the type it
// was created with; Typed views are the usual way in.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle. It returns 0 once the table
// is closed or when every slot is taken.
func (t *Table) Insert(typeID uint32, value any) Handle {
	t.closeMu.RLock()
	defer t.closeMu.RUnlock()
	if t.closed {
		return 0
	}

	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0
	}
	t.notify(Event{Type: EventCreated, Handle: handle, TypeID: typeID, Value: value})
	return handle
}

// Lookup returns the value behind handle if it is live and of typeID.
func (t *Table) Lookup(handle Handle, typeID uint32) (any, bool) {
	actual, ok := t.backend.TypeID(handle)
	if !ok || actual != typeID {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Remove drops handle if it is live and of typeID. The value's Dropper is
// not run; the caller owns the returned value.
func (t *Table) Remove(handle Handle, typeID uint32) (any, bool) {
	actual, ok := t.backend.TypeID(handle)
	if !ok || actual != typeID {
		return nil, false
	}
	return t.drop(handle, typeID)
}

func (t *Table) drop(handle Handle, typeID uint32) (any, bool) {
	value, ok := t.backend.Drop(handle)
	if !ok {
		return nil, false
	}
	t.notify(Event{Type: EventDropped, Handle: handle, TypeID: typeID, Value: value})
	return value, true
}

// Subscribe adds an observer for create and drop events. Observers run on
// the goroutine that changed the table and must not call back into it.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of live handles of every type.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Each calls fn for every live handle of typeID until fn returns false.
// fn must not call back into the table.
func (t *Table) Each(typeID uint32, fn func(Handle, any) bool) {
	t.backend.Each(func(h Handle, id uint32, value any) bool {
		if id != typeID {
			return true
		}
		return fn(h, value)
	})
}

// Close stops accepting handles, then drops every live one, running
// Dropper where a value implements it. Observers see each drop.
func (t *Table) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	type live struct {
		h  Handle
		id uint32
	}
	var all []live
	t.backend.Each(func(h Handle, id uint32, _ any) bool {
		all = append(all, live{h, id})
		return true
	})
	for _, l := range all {
		if v, ok := t.drop(l.h, l.id); ok {
			if d, ok := v.(Dropper); ok {
				d.Drop()
			}
		}
	}
	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
