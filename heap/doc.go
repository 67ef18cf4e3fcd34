// Package heap implements the managed heap arena the trap layer allocates
// into and reads from.
//
// Objects live in one contiguous byte arena based at a nonzero address.
// Each object is an 8-byte header, an 8-aligned payload and a guard of 0xA5
// bytes; a guard also opens the arena. Objects are identified by a stable
// ObjectID, while their address changes when a major collection slides them.
// Pinned objects never move and are the only objects whose address may be
// handed out.
//
// Raw access goes through Unsafe, which returns a systrap.UnsafeMemory
// restricted to live pinned payloads.
package heap
