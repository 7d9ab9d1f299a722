// Package sampling implements deterministic sampling of random bytes and floats.
package sampling

import (
	"encoding/binary"
	"io"
)

// Float64Sampler draws floats uniformly in [Min, Max) from a byte source.
type Float64Sampler struct {
	Source   io.Reader
	Min, Max float64
	buf      [8]byte
}

// NewFloat64Sampler returns a sampler drawing uniform floats in [min, max) from source.
func NewFloat64Sampler(source io.Reader, min, max float64) *Float64Sampler {
	return &Float64Sampler{Source: source, Min: min, Max: max}
}

// Read returns the next sample.
func (s *Float64Sampler) Read() float64 {
	if _, err := io.ReadFull(s.Source, s.buf[:]); err != nil {
		panic(err)
	}
	// 53 random bits give a uniform float64 in [0, 1)
	f := float64(binary.LittleEndian.Uint64(s.buf[:])>>11) / (1 << 53)
	return s.Min + f*(s.Max-s.Min)
}

// ReadNew returns a new slice of n samples.
func (s *Float64Sampler) ReadNew(n int) (v []float64) {
	v = make([]float64, n)
	for i := range v {
		v[i] = s.Read()
	}
	return
}
