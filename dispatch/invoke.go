package dispatch

import (
	"context"
	"fmt"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/host"
	"github.com/wippyai/systrap/result"
)

// invoke selects the handler for c.
func invoke(ctx context.Context, h *host.Host, c call.Call) (result.Result, error) {
	switch c := c.(type) {
	case call.Open:
		return h.Open(ctx, c)
	case call.Unlink:
		return h.Unlink(ctx, c)
	case call.Close:
		return h.Close(ctx, c)
	case call.Read:
		return h.Read(ctx, c)
	case call.Write:
		return h.Write(ctx, c)
	case call.GetResourceUsage:
		return h.GetResourceUsage(ctx, c)
	case call.DumpHeap:
		return h.DumpHeap(ctx, c)
	case call.Exit:
		return h.Exit(ctx, c)
	case call.Mtime:
		return h.Mtime(ctx, c)
	case call.Access:
		return h.Access(ctx, c)
	case call.Rename:
		return h.Rename(ctx, c)
	case call.PollInput:
		return h.PollInput(ctx, c)
	case call.Getenv:
		return h.Getenv(ctx, c)
	case call.GC:
		return h.GC(ctx, c)
	case call.FlonumLog:
		return h.FlonumLog(ctx, c)
	case call.FlonumExp:
		return h.FlonumExp(ctx, c)
	case call.FlonumSin:
		return h.FlonumSin(ctx, c)
	case call.FlonumCos:
		return h.FlonumCos(ctx, c)
	case call.FlonumTan:
		return h.FlonumTan(ctx, c)
	case call.FlonumAsin:
		return h.FlonumAsin(ctx, c)
	case call.FlonumAcos:
		return h.FlonumAcos(ctx, c)
	case call.FlonumAtan:
		return h.FlonumAtan(ctx, c)
	case call.FlonumAtan2:
		return h.FlonumAtan2(ctx, c)
	case call.FlonumSqrt:
		return h.FlonumSqrt(ctx, c)
	case call.StatsDumpOn:
		return h.StatsDumpOn(ctx, c)
	case call.StatsDumpOff:
		return h.StatsDumpOff(ctx, c)
	case call.IFlush:
		return h.IFlush(ctx, c)
	case call.GCCtl:
		return h.GCCtl(ctx, c)
	case call.BlockSignals:
		return h.BlockSignals(ctx, c)
	case call.FlonumSinh:
		return h.FlonumSinh(ctx, c)
	case call.FlonumCosh:
		return h.FlonumCosh(ctx, c)
	case call.System:
		return h.System(ctx, c)
	case call.FFIApply:
		return h.FFIApply(ctx, c)
	case call.FFIDlopen:
		return h.FFIDlopen(ctx, c)
	case call.FFIDlsym:
		return h.FFIDlsym(ctx, c)
	case call.MakeNonrelocatable:
		return h.MakeNonrelocatable(ctx, c)
	case call.ObjectToAddress:
		return h.ObjectToAddress(ctx, c)
	case call.FFIGetaddr:
		return h.FFIGetaddr(ctx, c)
	case call.SRO:
		return h.SRO(ctx, c)
	case call.SysFeature:
		return h.SysFeature(ctx, c)
	case call.PeekBytes:
		return h.PeekBytes(ctx, c)
	case call.PokeBytes:
		return h.PokeBytes(ctx, c)
	case call.SegmentCodeAddress:
		return h.SegmentCodeAddress(ctx, c)
	case call.StatsDumpStdout:
		return h.StatsDumpStdout(ctx, c)
	case call.Chdir:
		return h.Chdir(ctx, c)
	case call.Cwd:
		return h.Cwd(ctx, c)
	case call.SysGlobal:
		return h.SysGlobal(ctx, c)
	}
	return result.Result{}, errors.Unsupported(errors.PhaseInvoke, fmt.Sprintf("call %T", c))
}
