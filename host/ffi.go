package host

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/config"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/resource"
	"github.com/wippyai/systrap/result"
	"github.com/wippyai/systrap/value"
)

// bridge runs foreign libraries, which are WebAssembly modules, on a
// shared wazero runtime.
type bridge struct {
	rt     wazero.Runtime
	libs   *resource.Typed[*library]
	syms   *resource.Typed[*symbol]
	search []string
	seq    atomic.Uint64
}

type library struct {
	name string
	path string
	mod  api.Module
}

// Drop closes the module instance when the handle table is torn down.
func (l *library) Drop() {
	if err := l.mod.Close(context.Background()); err != nil {
		Logger().Debug("close library", zap.String("name", l.name), zap.Error(err))
	}
}

type symbol struct {
	name    string
	lib     resource.Handle
	fn      api.Function
	params  int
	results int
}

func newBridge(ctx context.Context, table *resource.Table, cfg config.FFI) (*bridge, error) {
	rcfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rcfg)
	if cfg.WASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("instantiate wasi: %w", err)
		}
	}
	return &bridge{
		rt:     rt,
		libs:   resource.NewTyped[*library](table, typeLibrary),
		syms:   resource.NewTyped[*symbol](table, typeSymbol),
		search: cfg.SearchPath,
	}, nil
}

func (b *bridge) close(ctx context.Context) error {
	return b.rt.Close(ctx)
}

// locate finds a relative library path on the search path.
func (b *bridge) locate(path string) string {
	if filepath.IsAbs(path) || strings.ContainsRune(path, filepath.Separator) {
		return path
	}
	for _, dir := range b.search {
		p := filepath.Join(dir, path)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return path
}

// open loads and instantiates the module at path. Failures carry the errno
// the trap reports: the host errno when the file cannot be read and ENOEXEC
// when it is not a usable module.
func (b *bridge) open(ctx context.Context, path string) (*library, *errors.Error) {
	path = b.locate(path)
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Native(errors.PhaseFFI, "c_ffi_dlopen", errnoOf(err), err)
	}

	compiled, err := b.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Native(errors.PhaseFFI, "c_ffi_dlopen", syscall.ENOEXEC, err)
	}
	defer compiled.Close(ctx)

	name := fmt.Sprintf("%s#%d", strings.TrimSuffix(filepath.Base(path), ".wasm"), b.seq.Add(1))
	mod, err := b.rt.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		return nil, errors.Native(errors.PhaseFFI, "c_ffi_dlopen", syscall.ENOEXEC, err)
	}
	return &library{name: name, path: path, mod: mod}, nil
}

func (h *Host) FFIDlopen(ctx context.Context, c call.FFIDlopen) (result.Result, error) {
	if h.ffi == nil {
		return result.Fail(syscall.ENOSYS), nil
	}
	lib, oerr := h.ffi.open(ctx, c.Path)
	if oerr != nil {
		Logger().Debug("library not opened", zap.String("path", c.Path), zap.Error(oerr))
		return result.Fail(oerr.Errno), nil
	}
	handle := h.ffi.libs.Insert(lib)
	if handle == 0 {
		lib.Drop()
		return result.Fail(syscall.EMFILE), nil
	}
	return result.Ok(result.Handle{Kind: value.HandleLibrary, Handle: handle}), nil
}

func (h *Host) FFIDlsym(_ context.Context, c call.FFIDlsym) (result.Result, error) {
	if h.ffi == nil {
		return result.Fail(syscall.ENOSYS), nil
	}
	lib, ok := h.ffi.libs.Get(c.Library)
	if !ok {
		return result.Result{}, errors.PermissionDenied(errors.PhaseFFI,
			fmt.Sprintf("library handle %d is not open", c.Library))
	}
	fn := lib.mod.ExportedFunction(c.Name)
	if fn == nil {
		return result.Fail(syscall.ENOENT), nil
	}
	def := fn.Definition()
	handle := h.ffi.syms.Insert(&symbol{
		name:    c.Name,
		lib:     c.Library,
		fn:      fn,
		params:  len(def.ParamTypes()),
		results: len(def.ResultTypes()),
	})
	if handle == 0 {
		return result.Fail(syscall.EMFILE), nil
	}
	return result.Ok(result.Handle{Kind: value.HandleSymbol, Handle: handle}), nil
}

// FFIApply calls a resolved symbol. Arguments and results are raw wasm
// values, one little-endian u64 word each.
func (h *Host) FFIApply(ctx context.Context, c call.FFIApply) (result.Result, error) {
	if h.ffi == nil {
		return result.Fail(syscall.ENOSYS), nil
	}
	sym, ok := h.ffi.syms.Get(c.Symbol)
	if !ok {
		return result.Result{}, errors.PermissionDenied(errors.PhaseFFI,
			fmt.Sprintf("symbol handle %d is not live", c.Symbol))
	}
	if _, ok := h.ffi.libs.Get(sym.lib); !ok {
		return result.Result{}, errors.PermissionDenied(errors.PhaseFFI,
			fmt.Sprintf("library of symbol %s is closed", sym.name))
	}
	if len(c.Args) != 8*sym.params {
		return result.Result{}, errors.New(errors.PhaseFFI, errors.KindOutOfRange).
			Op("c_ffi_apply").
			Expected(fmt.Sprintf("%d bytes", 8*sym.params)).
			Actual(fmt.Sprintf("%d bytes", len(c.Args))).
			Build()
	}

	params := make([]uint64, sym.params)
	for i := range params {
		params[i] = binary.LittleEndian.Uint64(c.Args[8*i:])
	}
	out, err := sym.fn.Call(ctx, params...)
	if err != nil {
		Logger().Debug("foreign call trapped", zap.String("symbol", sym.name), zap.Error(err))
		return result.Fail(syscall.EFAULT), nil
	}

	packed := make([]byte, 8*len(out))
	for i, v := range out {
		binary.LittleEndian.PutUint64(packed[8*i:], v)
	}
	return result.Ok(packed), nil
}
