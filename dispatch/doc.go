// Package dispatch is the entry point compiled code traps into.
//
// A Dispatcher resolves the opcode, marshals the managed arguments into a
// typed call.Call, runs the host handler under the opcode's lock class and
// encodes the native result back into managed values:
//
//	Idle -> Validating -> Marshaling -> Invoking -> Encoding -> Idle
//	                \___________\____________\______> Error -> Idle
//
// Every trap ends in an Outcome. Invalid opcodes, bad arguments and host
// failures are ordinary outcomes. Heap corruption is the one condition that
// escalates, through the dispatcher's FatalFunc.
package dispatch
