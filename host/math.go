package host

import (
	"context"
	"math"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/result"
)

// The flonum intrinsics follow IEEE semantics: NaN and infinities
// propagate and a domain error yields NaN, never an errno.

func (h *Host) FlonumLog(_ context.Context, c call.FlonumLog) (result.Result, error) {
	return result.Value(math.Log(c.X)), nil
}

func (h *Host) FlonumExp(_ context.Context, c call.FlonumExp) (result.Result, error) {
	return result.Value(math.Exp(c.X)), nil
}

func (h *Host) FlonumSin(_ context.Context, c call.FlonumSin) (result.Result, error) {
	return result.Value(math.Sin(c.X)), nil
}

func (h *Host) FlonumCos(_ context.Context, c call.FlonumCos) (result.Result, error) {
	return result.Value(math.Cos(c.X)), nil
}

func (h *Host) FlonumTan(_ context.Context, c call.FlonumTan) (result.Result, error) {
	return result.Value(math.Tan(c.X)), nil
}

func (h *Host) FlonumAsin(_ context.Context, c call.FlonumAsin) (result.Result, error) {
	return result.Value(math.Asin(c.X)), nil
}

func (h *Host) FlonumAcos(_ context.Context, c call.FlonumAcos) (result.Result, error) {
	return result.Value(math.Acos(c.X)), nil
}

func (h *Host) FlonumAtan(_ context.Context, c call.FlonumAtan) (result.Result, error) {
	return result.Value(math.Atan(c.X)), nil
}

func (h *Host) FlonumAtan2(_ context.Context, c call.FlonumAtan2) (result.Result, error) {
	return result.Value(math.Atan2(c.Y, c.X)), nil
}

func (h *Host) FlonumSqrt(_ context.Context, c call.FlonumSqrt) (result.Result, error) {
	return result.Value(math.Sqrt(c.X)), nil
}

func (h *Host) FlonumSinh(_ context.Context, c call.FlonumSinh) (result.Result, error) {
	return result.Value(math.Sinh(c.X)), nil
}

func (h *Host) FlonumCosh(_ context.Context, c call.FlonumCosh) (result.Result, error) {
	return result.Value(math.Cosh(c.X)), nil
}
