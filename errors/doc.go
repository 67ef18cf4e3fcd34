// Package errors provides structured error types for the trap layer.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the opcode name, the argument path, the
// expected and actual argument kinds, the host errno and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
//		Op("open").
//		Path("arg0").
//		Expected("string").
//		Actual("fixnum").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Arity("rename", 2, 1)
//	err := errors.Native(errors.PhaseFFI, "c_ffi_dlopen", unix.ENOEXEC, cause)
//	err := errors.OutOfRange(errors.PhaseMemory, addr, n)
//
// Host error codes are stored unmodified in Error.Errno. All errors implement
// the standard error interface and support errors.Is/As.
package errors
