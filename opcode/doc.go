// Package opcode is the trap table: opcode ids, names and static signatures.
//
// Two families share the id space without overlapping. The core family
// covers ids 0 through 45 with no gaps; the global-slot family holds
// sysglobal at 91. Resolve accepts any int64 and never panics.
package opcode
