package heap

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestImageRoundTrip(t *testing.T) {
	h := newTestHeap(t)
	s, _ := h.AllocString("kept")
	dead, _ := h.AllocString("dropped")
	p, _ := h.AllocBytes([]byte{9, 8, 7})
	h.Pin(p)
	h.RegisterSymbol("entry-point", []byte{0xC3})
	h.Release(dead)

	var buf bytes.Buffer
	id, err := h.Dump(&buf, "main")
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("image id %q is not a uuid", id)
	}

	h2, img, err := Load(&buf, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Entry != "main" || img.ID != id {
		t.Fatalf("image header = %+v", img)
	}
	if got, err := h2.String(s); err != nil || got != "kept" {
		t.Fatalf("String after load = %q, %v", got, err)
	}
	if h2.Live(dead) {
		t.Fatal("released object survived the image")
	}
	if !h2.Pinned(p) {
		t.Fatal("pin state lost")
	}
	if _, err := h2.Symbol("entry-point"); err != nil {
		t.Fatalf("symbol lost: %v", err)
	}

	// New allocations never reuse an id from the image.
	fresh, _ := h2.AllocString("new")
	if fresh <= dead {
		t.Fatalf("fresh id %d reuses image id space", fresh)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage(bytes.NewReader([]byte("not cbor"))); err == nil {
		t.Fatal("garbage should not decode")
	}

	data, _ := imageEncMode.Marshal(&Image{Magic: "other", Version: imageVersion, ID: uuid.New().String()})
	if _, err := DecodeImage(bytes.NewReader(data)); err == nil {
		t.Fatal("wrong magic should fail")
	}

	data, _ = imageEncMode.Marshal(&Image{Magic: imageMagic, Version: 99, ID: uuid.New().String()})
	if _, err := DecodeImage(bytes.NewReader(data)); err == nil {
		t.Fatal("wrong version should fail")
	}
}
