package formats

import (
	"encoding/binary"
	"math"
)

// reader is a bounds-checked little-endian cursor over a byte slice.
// Reads past the end return zero values and mark the reader short, so a
// truncated file is reported once instead of panicking mid-parse.
type reader struct {
	data  []byte
	off   int
	short bool
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) seek(off int) {
	if off < 0 || off > len(r.data) {
		r.short = true
		r.off = len(r.data)
		return
	}
	r.off = off
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) take(n int) []byte {
	if n < 0 || r.off+n > len(r.data) {
		r.short = true
		r.off = len(r.data)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) vec3() [3]float32 {
	return [3]float32{r.f32(), r.f32(), r.f32()}
}

// count reads a uint32 element count and rejects counts whose records could
// not fit in the remaining data.
func (r *reader) count(recordSize int) (int, bool) {
	n := int(r.u32())
	if r.short || n < 0 || (recordSize > 0 && n > len(r.data)/recordSize) {
		return 0, false
	}
	return n, true
}
