package resource

// Typed is the view of one resource type within a shared table. Handles of
// any other type never resolve through it.
type Typed[T any] struct {
	table  *Table
	typeID uint32
}

// NewTyped creates a typed view over table for typeID.
func NewTyped[T any](table *Table, typeID uint32) *Typed[T] {
	return &Typed[T]{table: table, typeID: typeID}
}

// Insert adds a value and returns its handle, or 0 if the table refused it.
func (t *Typed[T]) Insert(value T) Handle {
	return t.table.Insert(t.typeID, value)
}

func (t *Typed[T]) Get(handle Handle) (T, bool) {
	var zero T
	v, ok := t.table.Lookup(handle, t.typeID)
	if !ok {
		return zero, false
	}
	r, ok := v.(T)
	return r, ok
}

// Remove drops handle and hands its value back without running Dropper.
func (t *Typed[T]) Remove(handle Handle) (T, bool) {
	var zero T
	v, ok := t.table.Remove(handle, t.typeID)
	if !ok {
		return zero, false
	}
	r, ok := v.(T)
	return r, ok
}

// Len counts the live handles of this type.
func (t *Typed[T]) Len() int {
	n := 0
	t.table.Each(t.typeID, func(Handle, any) bool {
		n++
		return true
	})
	return n
}

// Each calls fn for every live handle of this type until fn returns false.
func (t *Typed[T]) Each(fn func(Handle, T) bool) {
	t.table.Each(t.typeID, func(h Handle, v any) bool {
		r, ok := v.(T)
		if !ok {
			return true
		}
		return fn(h, r)
	})
}
