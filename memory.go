package systrap

// Address is a raw managed-heap address as seen by foreign code.
type Address uint64

// Memory is raw access to the managed heap.
//
// Nothing above the memory handlers holds a Memory. Every call is checked
// against live pinned payloads before any byte is read or written, and an
// address outside one returns an out-of-range error.
type Memory interface {
	Read(addr Address, length uint32) ([]byte, error)
	Write(addr Address, data []byte) error
	ReadU64(addr Address) (uint64, error)
	WriteU64(addr Address, value uint64) error
}

// Regioner reports the pinned payload that contains an address.
type Regioner interface {
	Region(addr Address) (start Address, length uint32, ok bool)
}

// UnsafeMemory is the full capability handed to the memory handlers.
type UnsafeMemory interface {
	Memory
	Regioner
}
