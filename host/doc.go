// Package host implements the native side of every trap.
//
// A Host owns the resources traps operate on: the file, library and symbol
// handle table, the managed heap, the foreign library bridge, the stats
// dumper, the signal gate and the global slots. Each trap has one method
// taking its typed request.
//
// Handlers report host failures as status results carrying the errno the
// host returned, unmodified. They return a Go error only for conditions that
// are not host failures: stale FFI handles, raw memory outside pinned
// payloads and heap corruption.
package host
