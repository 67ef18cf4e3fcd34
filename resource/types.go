package resource

// Handle is an opaque reference to a resource in a table.
// The low 20 bits select a slot, the high 12 bits carry the slot generation,
// so a handle to a closed resource never resolves to a later occupant of the
// same slot. Handle 0 is reserved and always invalid.
type Handle uint32

const (
	slotBits = 20
	slotMask = 1<<slotBits - 1
	genMask  = 1<<(32-slotBits) - 1
	maxSlots = slotMask
	firstGen = 1
)

func makeHandle(slot int, gen uint32) Handle {
	return Handle(gen<<slotBits | uint32(slot+1))
}

func (h Handle) slot() int {
	return int(uint32(h)&slotMask) - 1
}

func (h Handle) gen() uint32 {
	return uint32(h) >> slotBits
}

// EventType says whether a handle was created or dropped.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event describes one handle being created or dropped.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer is told about every handle created or dropped.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is implemented by values that release something when the table
// closes with their handle still live.
type Dropper interface {
	Drop()
}
