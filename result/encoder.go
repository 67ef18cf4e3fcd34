package result

import (
	"fmt"

	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/value"
)

// Allocator creates the heap objects results are returned in.
type Allocator interface {
	AllocString(s string) (heap.ObjectID, error)
	AllocBytes(b []byte) (heap.ObjectID, error)
	AllocVector(vals []value.Value) (heap.ObjectID, error)
}

// Encoder converts native results to managed values.
type Encoder struct {
	alloc Allocator
}

// NewEncoder creates an encoder that allocates into a.
func NewEncoder(a Allocator) *Encoder {
	return &Encoder{alloc: a}
}

func shapeError(op opcode.Opcode, format string, args ...any) error {
	return errors.New(errors.PhaseEncode, errors.KindInvalidData).
		Op(op.String()).
		Detail(format, args...).
		Build()
}

// Encode checks r against the signature of op and converts its values.
// A failed status encodes to a single errno value.
func (e *Encoder) Encode(op opcode.Opcode, r Result) ([]value.Value, error) {
	sig, ok := op.Signature()
	if !ok {
		return nil, errors.InvalidOpcode(int64(op))
	}
	if r.Shape != sig.Shape {
		return nil, shapeError(op, "handler returned %s, signature says %s", r.Shape, sig.Shape)
	}

	switch r.Shape {
	case ShapeUnspecified:
		if len(r.Values) != 0 {
			return nil, shapeError(op, "unspecified result carries %d values", len(r.Values))
		}
		return []value.Value{value.Unspecified}, nil

	case ShapeValue:
		if len(r.Values) != 1 {
			return nil, shapeError(op, "value result carries %d values", len(r.Values))
		}

	case ShapeTuple:
		if len(r.Values) != sig.TupleArity {
			return nil, shapeError(op, "tuple arity %d, want %d", len(r.Values), sig.TupleArity)
		}

	case ShapeStatus:
		if r.Failed() {
			return []value.Value{value.FromErrno(r.Errno)}, nil
		}
		switch {
		case len(r.Values) == 0:
			return []value.Value{value.Unspecified}, nil
		case sig.TupleArity > 0 && len(r.Values) != sig.TupleArity:
			return nil, shapeError(op, "status tuple arity %d, want %d", len(r.Values), sig.TupleArity)
		case sig.TupleArity == 0 && len(r.Values) != 1:
			return nil, shapeError(op, "status result carries %d values", len(r.Values))
		}
	}

	out := make([]value.Value, len(r.Values))
	for i, v := range r.Values {
		mv, err := e.value(v)
		if err != nil {
			kind := errors.KindUnsupported
			if he, ok := errors.From(err); ok {
				kind = he.Kind
			}
			return nil, errors.New(errors.PhaseEncode, kind).
				Op(op.String()).
				Path(fmt.Sprint(i)).
				Cause(err).
				Build()
		}
		out[i] = mv
	}
	return out, nil
}

// Scalars encodes the leading values of r that need no heap allocation,
// stopping at the first that does. It recovers what can still be reported
// when Encode fails because the heap is exhausted.
func (e *Encoder) Scalars(r Result) []value.Value {
	var out []value.Value
	for _, v := range r.Values {
		switch v.(type) {
		case string, []byte, []value.Value:
			return out
		}
		mv, err := e.value(v)
		if err != nil {
			return out
		}
		out = append(out, mv)
	}
	return out
}

func integer(n int64) value.Value {
	if v, ok := value.TryFromFixnum(n); ok {
		return v
	}
	return value.FromFlonum(float64(n))
}

// value converts one native value.
func (e *Encoder) value(v any) (value.Value, error) {
	switch x := v.(type) {
	case nil:
		return value.Unspecified, nil
	case value.Value:
		return x, nil
	case bool:
		return value.FromBool(x), nil
	case int:
		return integer(int64(x)), nil
	case int32:
		return integer(int64(x)), nil
	case int64:
		return integer(x), nil
	case uint32:
		return integer(int64(x)), nil
	case uint64:
		if x > 1<<63-1 {
			return value.FromFlonum(float64(x)), nil
		}
		return integer(int64(x)), nil
	case float64:
		return value.FromFlonum(x), nil
	case systrap.Address:
		return integer(int64(x)), nil
	case heap.ObjectID:
		return value.FromObject(uint64(x)), nil
	case Handle:
		return value.FromHandle(x.Kind, uint32(x.Handle)), nil
	case string:
		id, err := e.alloc.AllocString(x)
		if err != nil {
			return value.Nil, err
		}
		return value.FromObject(uint64(id)), nil
	case []byte:
		id, err := e.alloc.AllocBytes(x)
		if err != nil {
			return value.Nil, err
		}
		return value.FromObject(uint64(id)), nil
	case []value.Value:
		id, err := e.alloc.AllocVector(x)
		if err != nil {
			return value.Nil, err
		}
		return value.FromObject(uint64(id)), nil
	}
	return value.Nil, fmt.Errorf("no managed representation for %T", v)
}
