// Package systrap is the syscall trap-dispatch layer of a managed-language
// runtime.
//
// Compiled code reaches host services through one numbered interface: a trap
// carries an opcode id and a list of managed values, and returns managed
// values or an errno. This module resolves the opcode, marshals the
// arguments into a typed request, runs the native handler and encodes the
// results.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	systrap/             Root package with the raw Memory capability
//	├── opcode/          Opcode families, names and signatures
//	├── call/            Typed trap requests, one struct per opcode
//	├── marshal/         Managed argument lists to typed requests
//	├── result/          Native result shapes and the result encoder
//	├── dispatch/        Dispatch state machine and lock classes
//	├── host/            Native handlers: I/O, process, runtime, math, FFI, memory, env
//	├── heap/            Managed heap arena, pinning, collection, images
//	├── value/           NaN-boxed managed values
//	├── resource/        Generation-checked handle table
//	├── config/          TOML configuration
//	└── errors/          Structured error types
//
// # Quick Start
//
//	cfg := config.Default()
//	h, err := host.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d := dispatch.New(h)
//	defer d.Close(ctx)
//
//	out := d.Dispatch(ctx, 23, []value.Value{value.FromFlonum(2)})
//	fmt.Println(out.Status, out.Values) // success [1.4142135623730951]
//
// Typed callers skip marshaling:
//
//	out = d.Invoke(ctx, call.Getenv{Name: "HOME"})
//
// # Outcomes
//
// Every trap returns a dispatch.Outcome. Host failures keep their errno
// unmodified; malformed requests and unknown opcodes are reported as
// statuses and never reach a handler. Heap corruption detected by the raw
// memory handlers is the only fatal path.
package systrap
