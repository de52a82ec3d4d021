/*
NAME
  matrix.go

DESCRIPTION
  matrix.go provides serialisation of two dimensional numeric grids to and
  from byte streams, along with the row splitting, stacking and shifting
  helpers shared by the NMF codec variants.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package matrix provides transport of gonum dense matrices over byte streams.
//
// A serialised matrix is a header of two little endian uint32 values (rows,
// then columns) followed by rows*cols elements in row-major order. The width
// and interpretation of each element is given by a Kind.
package matrix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind is the element encoding used for a serialised matrix.
type Kind int

// Element kinds.
const (
	Float32 Kind = iota // IEEE 754 single precision.
	Float64             // IEEE 754 double precision.
	Uint32              // Unsigned 32 bit integers, values are rounded and clamped.
)

const headSize = 8 // Rows and columns, both uint32.

// MaxElements is the largest element count Read accepts for one matrix.
const MaxElements = 1 << 28

var (
	ErrDimensionMismatch = errors.New("matrix dimensions mismatch")
	ErrTruncated         = errors.New("truncated matrix data")
	ErrEmpty             = errors.New("matrix has no elements")
	ErrUnknownKind       = errors.New("unknown matrix element kind")
	ErrTooLarge          = errors.New("matrix too large")
)

// Size returns the number of bytes used by one element of kind k.
func (k Kind) Size() int {
	switch k {
	case Float32, Uint32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Uint32:
		return "u32"
	default:
		return "unknown"
	}
}

// Write serialises m to w using element kind k.
func Write(w io.Writer, m mat.Matrix, k Kind) error {
	size := k.Size()
	if size == 0 {
		return ErrUnknownKind
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return ErrEmpty
	}
	if uint64(r) > math.MaxUint32 || uint64(c) > math.MaxUint32 {
		return fmt.Errorf("matrix of %dx%d too large to serialise", r, c)
	}

	buf := make([]byte, headSize+r*c*size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c))
	off := headSize
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			switch k {
			case Float32:
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
			case Float64:
				binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
			case Uint32:
				binary.LittleEndian.PutUint32(buf[off:], toUint32(v))
			}
			off += size
		}
	}

	_, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("could not write matrix: %w", err)
	}
	return nil
}

// Read deserialises a matrix of element kind k from r.
func Read(r io.Reader, k Kind) (*mat.Dense, error) {
	size := k.Size()
	if size == 0 {
		return nil, ErrUnknownKind
	}

	var head [headSize]byte
	_, err := io.ReadFull(r, head[:])
	if err != nil {
		return nil, truncated(err, "matrix header")
	}
	rows := int(binary.LittleEndian.Uint32(head[0:4]))
	cols := int(binary.LittleEndian.Uint32(head[4:8]))
	if rows == 0 || cols == 0 {
		return nil, ErrEmpty
	}
	if uint64(rows)*uint64(cols) > MaxElements {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d elements", ErrTooLarge, rows, cols, MaxElements)
	}

	// Read the payload incrementally so a corrupt header claiming a huge
	// matrix fails on the short stream rather than on allocation.
	n := int64(rows) * int64(cols) * int64(size)
	var payload []byte
	lr := io.LimitReader(r, n)
	payload, err = io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("could not read matrix data: %w", err)
	}
	if int64(len(payload)) != n {
		return nil, fmt.Errorf("%w: have %d of %d bytes for %dx%d %s matrix", ErrTruncated, len(payload), n, rows, cols, k)
	}

	data := make([]float64, rows*cols)
	for i := range data {
		b := payload[i*size:]
		switch k {
		case Float32:
			data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case Float64:
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		case Uint32:
			data[i] = float64(binary.LittleEndian.Uint32(b))
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

func truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return fmt.Errorf("could not read %s: %w", what, err)
}

func toUint32(v float64) uint32 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(math.Round(v))
	}
}
