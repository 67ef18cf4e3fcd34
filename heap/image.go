package heap

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/systrap/errors"
)

const (
	imageMagic   = "systrap-heap"
	imageVersion = 1
)

// Image is the serialized form of a heap.
type Image struct {
	Magic   string            `cbor:"1,keyasint"`
	Version int               `cbor:"2,keyasint"`
	ID      string            `cbor:"3,keyasint"`
	Entry   string            `cbor:"4,keyasint,omitempty"`
	Created int64             `cbor:"5,keyasint"` // unix seconds
	NextID  uint64            `cbor:"6,keyasint"`
	Objects []ImageObject     `cbor:"7,keyasint"`
	Symbols map[string]uint64 `cbor:"8,keyasint,omitempty"`
}

// ImageObject is one live object in an image.
type ImageObject struct {
	ID      uint64 `cbor:"1,keyasint"`
	Kind    Kind   `cbor:"2,keyasint"`
	Pinned  bool   `cbor:"3,keyasint,omitempty"`
	Payload []byte `cbor:"4,keyasint"`
}

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("heap: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// Snapshot captures the live objects and symbols as an image. entry names
// the procedure a restarted runtime should call first.
func (h *Heap) Snapshot(entry string) *Image {
	h.mu.Lock()
	defer h.mu.Unlock()

	img := &Image{
		Magic:   imageMagic,
		Version: imageVersion,
		ID:      uuid.New().String(),
		Entry:   entry,
		Created: time.Now().Unix(),
		NextID:  uint64(h.nextID),
		Symbols: make(map[string]uint64, len(h.symbols)),
	}
	for _, o := range h.objs {
		if o.released {
			continue
		}
		p := o.payloadOff()
		payload := make([]byte, o.length)
		copy(payload, h.arena[p:p+o.length])
		img.Objects = append(img.Objects, ImageObject{
			ID:      uint64(o.id),
			Kind:    o.kind,
			Pinned:  o.pinned,
			Payload: payload,
		})
	}
	for name, id := range h.symbols {
		img.Symbols[name] = uint64(id)
	}
	return img
}

// Dump writes a CBOR image of the heap to w and returns the image id.
func (h *Heap) Dump(w io.Writer, entry string) (string, error) {
	img := h.Snapshot(entry)
	data, err := imageEncMode.Marshal(img)
	if err != nil {
		return "", errors.Wrap(errors.PhaseHeap, errors.KindInvalidData, err, "encode image")
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("write heap image: %w", err)
	}
	Logger().Debug("heap image dumped",
		zap.String("id", img.ID),
		zap.String("entry", entry),
		zap.Int("objects", len(img.Objects)),
		zap.Int("bytes", len(data)))
	return img.ID, nil
}

// DecodeImage reads and validates a CBOR heap image.
func DecodeImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read heap image: %w", err)
	}
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, errors.Wrap(errors.PhaseHeap, errors.KindInvalidData, err, "decode image")
	}
	if img.Magic != imageMagic {
		return nil, errors.InvalidData(errors.PhaseHeap, fmt.Sprintf("bad image magic %q", img.Magic))
	}
	if img.Version != imageVersion {
		return nil, errors.InvalidData(errors.PhaseHeap, fmt.Sprintf("unsupported image version %d", img.Version))
	}
	if _, err := uuid.Parse(img.ID); err != nil {
		return nil, errors.Wrap(errors.PhaseHeap, errors.KindInvalidData, err, "bad image id")
	}
	return &img, nil
}

// Load restores a heap from an image. Object ids and pin state survive;
// addresses do not.
func Load(r io.Reader, opts Options) (*Heap, *Image, error) {
	img, err := DecodeImage(r)
	if err != nil {
		return nil, nil, err
	}

	objs := append([]ImageObject(nil), img.Objects...)
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID < objs[j].ID })

	h := New(opts)
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, rec := range objs {
		if !rec.Kind.Valid() {
			return nil, nil, errors.InvalidData(errors.PhaseHeap, fmt.Sprintf("object %d has unknown kind %d", rec.ID, rec.Kind))
		}
		if rec.ID == 0 || ObjectID(rec.ID) <= h.nextID {
			return nil, nil, errors.InvalidData(errors.PhaseHeap, fmt.Sprintf("duplicate or zero object id %d", rec.ID))
		}
		h.nextID = ObjectID(rec.ID - 1)
		o, err := h.allocLocked(rec.Kind, rec.Payload)
		if err != nil {
			return nil, nil, err
		}
		o.pinned = rec.Pinned || rec.Kind == KindCode
		o.dirty = false
		o.writeHeader(h.arena)
	}
	if ObjectID(img.NextID) > h.nextID {
		h.nextID = ObjectID(img.NextID)
	}
	for name, id := range img.Symbols {
		o, ok := h.byID[ObjectID(id)]
		if !ok || o.kind != KindCode {
			return nil, nil, errors.InvalidData(errors.PhaseHeap, fmt.Sprintf("symbol %q names no code object", name))
		}
		h.symbols[name] = o.id
	}

	Logger().Debug("heap image loaded",
		zap.String("id", img.ID),
		zap.String("entry", img.Entry),
		zap.Int("objects", len(objs)))
	return h, img, nil
}
