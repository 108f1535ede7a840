package vector

import (
	"encoding/binary"
	"math"
)

const float32Size = 4

// RowSize returns the byte length of one row of the given dimension.
func RowSize(dims int) int64 {
	return int64(dims) * float32Size
}

// EncodeRow writes v into dst as little-endian float32. dst must hold len(v)*4 bytes.
func EncodeRow(dst []byte, v []float32) {
	for i, x := range v {
		binary.LittleEndian.PutUint32(dst[i*float32Size:], math.Float32bits(x))
	}
}

// DecodeRow decodes a little-endian float32 row.
func DecodeRow(b []byte) []float32 {
	out := make([]float32, len(b)/float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*float32Size:]))
	}
	return out
}

// dotBytes computes the float32 dot product of q with an encoded row without decoding it.
func dotBytes(q []float32, row []byte) float32 {
	var dot float32
	for i, x := range q {
		dot += x * math.Float32frombits(binary.LittleEndian.Uint32(row[i*float32Size:]))
	}
	return dot
}
