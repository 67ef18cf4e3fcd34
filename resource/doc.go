// Package resource provides the handle table behind file, library and symbol
// handles.
//
// A handle is an opaque 32-bit token. Its low bits select a slot and its high
// bits carry the slot generation, so a closed handle can never alias a later
// resource that happens to reuse the slot. Every handle also records the type
// it was created with, and a Typed view rejects handles of any other type:
//
//	table := resource.NewTable()
//	files := resource.NewTyped[*file](table, typeFile)
//
//	h := files.Insert(f)
//	f, ok := files.Get(h)     // false for a library handle
//	f, ok = files.Remove(h)   // caller closes f
//
// Remove hands the value back without running its Dropper. Close drops
// every handle still live and runs Dropper on each value; it is meant for
// shutdown only.
//
// Observers registered with Subscribe see every create and drop, including
// the drops Close performs.
package resource
