package host

import (
	"go.uber.org/zap"

	"github.com/wippyai/systrap/resource"
)

// handleLog records handle traffic at debug level.
type handleLog struct{}

func typeName(id uint32) string {
	switch id {
	case typeFile:
		return "file"
	case typeLibrary:
		return "library"
	case typeSymbol:
		return "symbol"
	}
	return "unknown"
}

func (handleLog) OnResourceEvent(e resource.Event) {
	l := Logger()
	ce := l.Check(zap.DebugLevel, "handle created")
	if e.Type == resource.EventDropped {
		ce = l.Check(zap.DebugLevel, "handle dropped")
	}
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("type", typeName(e.TypeID)),
		zap.Uint32("handle", uint32(e.Handle)),
	}
	switch v := e.Value.(type) {
	case *file:
		fields = append(fields, zap.String("path", v.name), zap.Int("fd", v.fd))
	case *library:
		fields = append(fields, zap.String("path", v.path), zap.String("module", v.name))
	case *symbol:
		fields = append(fields, zap.String("name", v.name))
	}
	ce.Write(fields...)
}

// openCounts returns the live handles per type.
func (h *Host) openCounts() (files, libs, syms int) {
	files = h.files.Len()
	if h.ffi != nil {
		libs, syms = h.ffi.libs.Len(), h.ffi.syms.Len()
	}
	return files, libs, syms
}

// logLeaked reports files the program never closed. The standard
// descriptors do not count.
func (h *Host) logLeaked() {
	h.files.Each(func(hd resource.Handle, f *file) bool {
		if !f.std {
			Logger().Info("closing file left open", zap.String("path", f.name), zap.Uint32("handle", uint32(hd)))
		}
		return true
	})
}
