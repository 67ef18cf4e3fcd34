package heap

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CollectKind selects how much work a collection does.
type CollectKind uint8

const (
	// CollectMinor drops released objects without moving anything.
	CollectMinor CollectKind = iota
	// CollectMajor also slides unpinned objects down to close gaps.
	CollectMajor
)

func (k CollectKind) String() string {
	switch k {
	case CollectMinor:
		return "minor"
	case CollectMajor:
		return "major"
	}
	return fmt.Sprintf("collect-%d", uint8(k))
}

// Collect runs a collection and returns the bytes reclaimed.
func (h *Heap) Collect(kind CollectKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.collectLocked(kind)
}

func (h *Heap) collectLocked(kind CollectKind) int {
	start := time.Now()

	reclaimed := 0
	kept := h.objs[:0]
	for _, o := range h.objs {
		if !o.released {
			kept = append(kept, o)
			continue
		}
		span := o.span(h.guard)
		clear(h.arena[o.off : o.off+span])
		reclaimed += span
		delete(h.byID, o.id)
	}
	clear(h.objs[len(kept):])
	h.objs = kept

	moved := 0
	if kind == CollectMajor && h.policy == PolicyCompacting {
		moved = h.slideLocked()
	} else {
		h.lowerTopLocked()
	}

	pause := time.Since(start)
	h.stats.Collections++
	if kind == CollectMajor {
		h.stats.MajorCollections++
	} else {
		h.stats.MinorCollections++
	}
	h.stats.ReclaimedBytes += uint64(reclaimed)
	h.stats.MovedObjects += uint64(moved)
	h.stats.LastPause = pause
	h.stats.TotalPause += pause

	Logger().Debug("heap collected",
		zap.Stringer("kind", kind),
		zap.Int("reclaimed", reclaimed),
		zap.Int("moved", moved),
		zap.Duration("pause", pause))

	if h.onGC != nil {
		h.onGC(kind, h.statsLocked())
	}
	return reclaimed
}

// slideLocked moves unpinned objects down in address order. Pinned objects
// stay put and the cursor jumps past them.
func (h *Heap) slideLocked() int {
	moved := 0
	cursor := h.guard
	for _, o := range h.objs {
		span := o.span(h.guard)
		if o.pinned {
			cursor = o.off + span
			continue
		}
		if o.off != cursor {
			copy(h.arena[cursor:cursor+span], h.arena[o.off:o.off+span])
			o.off = cursor
			o.writeHeader(h.arena)
			h.stampGuard(o.guardOff())
			moved++
		}
		cursor += span
	}
	clear(h.arena[cursor:h.top])
	h.top = cursor
	return moved
}

func (h *Heap) lowerTopLocked() {
	top := h.guard
	if n := len(h.objs); n > 0 {
		last := h.objs[n-1]
		top = last.off + last.span(h.guard)
	}
	h.top = top
}
