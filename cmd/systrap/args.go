package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/value"
)

// parseArgs converts command-line text into managed arguments for op.
// Strings and bytevectors are allocated in hp.
func parseArgs(hp *heap.Heap, op opcode.Opcode, texts []string) ([]value.Value, error) {
	sig, ok := op.Signature()
	if !ok {
		return nil, fmt.Errorf("unknown opcode %s", op)
	}
	if len(texts) != sig.Arity() {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", sig.Name, sig.Arity(), len(texts))
	}
	out := make([]value.Value, len(texts))
	for i, text := range texts {
		v, err := parseArg(hp, sig.Args[i], text)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", sig.Name, i, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(hp *heap.Heap, kind opcode.ArgKind, text string) (value.Value, error) {
	switch kind {
	case opcode.ArgInt32, opcode.ArgInt64, opcode.ArgCount, opcode.ArgAddress:
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return value.Nil, err
		}
		v, ok := value.TryFromFixnum(n)
		if !ok {
			return value.Nil, fmt.Errorf("%d does not fit a fixnum", n)
		}
		return v, nil

	case opcode.ArgFlonum:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return value.Nil, err
		}
		return value.FromFlonum(f), nil

	case opcode.ArgBool:
		switch strings.ToLower(text) {
		case "#t", "true", "1":
			return value.True, nil
		case "#f", "false", "0":
			return value.False, nil
		}
		return value.Nil, fmt.Errorf("%q is not a boolean", text)

	case opcode.ArgString:
		id, err := hp.AllocString(text)
		if err != nil {
			return value.Nil, err
		}
		return value.FromObject(uint64(id)), nil

	case opcode.ArgBytes:
		id, err := hp.AllocBytes([]byte(text))
		if err != nil {
			return value.Nil, err
		}
		return value.FromObject(uint64(id)), nil

	case opcode.ArgFile:
		return parseHandle(value.HandleFile, text)
	case opcode.ArgLibrary:
		return parseHandle(value.HandleLibrary, text)
	case opcode.ArgSymbol:
		return parseHandle(value.HandleSymbol, text)

	case opcode.ArgObject:
		n, err := strconv.ParseUint(strings.TrimPrefix(text, "@"), 0, 64)
		if err != nil {
			return value.Nil, err
		}
		if n > value.MaxObjectID {
			return value.Nil, fmt.Errorf("object id %d out of range", n)
		}
		return value.FromObject(n), nil
	}
	return parseAny(hp, text)
}

func parseHandle(kind value.HandleKind, text string) (value.Value, error) {
	n, err := strconv.ParseUint(text, 0, 32)
	if err != nil {
		return value.Nil, err
	}
	return value.FromHandle(kind, uint32(n)), nil
}

// parseAny reads "#!unspecified", booleans, numbers, and falls back to a
// string.
func parseAny(hp *heap.Heap, text string) (value.Value, error) {
	switch text {
	case "", "#!unspecified":
		return value.Unspecified, nil
	case "#t":
		return value.True, nil
	case "#f":
		return value.False, nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		if v, ok := value.TryFromFixnum(n); ok {
			return v, nil
		}
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return value.FromFlonum(f), nil
	}
	return parseArg(hp, opcode.ArgString, text)
}

// describe renders v, expanding heap objects it points to.
func describe(hp *heap.Heap, v value.Value) string {
	if !v.IsObject() {
		return v.String()
	}
	id := heap.ObjectID(v.Object())
	kind, ok := hp.Kind(id)
	if !ok {
		return v.String()
	}
	switch kind {
	case heap.KindString:
		if s, err := hp.String(id); err == nil {
			return strconv.Quote(s)
		}
	case heap.KindBytevector:
		if b, err := hp.Bytes(id); err == nil {
			return fmt.Sprintf("#u8%v", b)
		}
	case heap.KindFlonum:
		if f, err := hp.Flonum(id); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	case heap.KindVector:
		if vals, err := hp.Vector(id); err == nil {
			parts := make([]string, len(vals))
			for i, e := range vals {
				parts[i] = e.String()
			}
			return "#(" + strings.Join(parts, " ") + ")"
		}
	}
	return v.String()
}

// resolveOp accepts an opcode name or a numeric id.
func resolveOp(s string) (opcode.Opcode, error) {
	if op, ok := opcode.Lookup(s); ok {
		return op, nil
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return opcode.Unknown, fmt.Errorf("unknown opcode %q", s)
	}
	op, ok := opcode.Resolve(n)
	if !ok {
		return opcode.Unknown, fmt.Errorf("opcode %d is not defined", n)
	}
	return op, nil
}
