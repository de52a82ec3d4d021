/*
NAME
  anmf.go

DESCRIPTION
  anmf.go defines the variants, magic tags and errors of the ANMF container,
  a binary format holding audio compressed by non-negative matrix
  factorisation.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package anmf provides an encoder and decoder for the ANMF container.
//
// A container holds a magic tag naming the variant, a little-endian uint16
// channel count and uint32 sample rate, then one payload per channel. Each
// channel payload starts with a uint32 padding sample count and a uint32
// chunk count, followed by variant specific data and the chunks in order.
//
// Variants:
//
//	Square "ANMF"  whole channel as one square matrix, float64 factors.
//	Raw    "ANMFR" time domain chunks of RawRows x RawCols, float32 factors.
//	MDCT   "ANMFM" MDCT coefficient chunks, float32 factors.
//	STFT   "ANMFS" STFT magnitude chunks, companded uint32 W and entropy
//	               coded H; per channel entropy coded phase.
package anmf

import (
	"errors"
	"fmt"
	"strings"
)

// Variant selects the transform and payload layout of a container.
type Variant int

// Variants.
const (
	Square Variant = iota
	Raw
	MDCT
	STFT
)

// MaxChannels is the largest channel count a container can hold. It keeps
// the fifth byte of a Square header, the low byte of the channel count,
// distinct from the fifth byte of the other variants' tags.
const MaxChannels = 64

const (
	tagPrefix = "ANMF"
	maxTagLen = len(tagPrefix) + 1
)

var (
	ErrFormat    = errors.New("invalid ANMF container")
	ErrBadMagic  = fmt.Errorf("%w: unrecognised magic tag", ErrFormat)
	ErrTruncated = fmt.Errorf("%w: truncated stream", ErrFormat)
	ErrTooLarge  = fmt.Errorf("%w: channel exceeds element limit", ErrFormat)

	ErrUnknownVariant = errors.New("unknown variant")
	ErrChannels       = fmt.Errorf("channel count must be between 1 and %d", MaxChannels)
)

var variantNames = [...]string{Square: "square", Raw: "raw", MDCT: "mdct", STFT: "stft"}

// String returns the lower case name of v.
func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return "unknown"
	}
	return variantNames[v]
}

// Variants returns the names of all variants.
func Variants() []string {
	return append([]string(nil), variantNames[:]...)
}

// ParseVariant returns the variant with the given case insensitive name.
func ParseVariant(s string) (Variant, error) {
	for i, n := range variantNames {
		if strings.EqualFold(s, n) {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Tag returns the magic tag written at the start of a container of
// variant v.
func (v Variant) Tag() []byte {
	switch v {
	case Square:
		return []byte(tagPrefix)
	case Raw:
		return []byte(tagPrefix + "R")
	case MDCT:
		return []byte(tagPrefix + "M")
	case STFT:
		return []byte(tagPrefix + "S")
	}
	return nil
}

// Detect returns the variant whose tag starts hdr. hdr must hold at least
// the first five bytes of a container.
func Detect(hdr []byte) (Variant, error) {
	if len(hdr) < maxTagLen {
		return 0, fmt.Errorf("%w: %d byte header", ErrTruncated, len(hdr))
	}
	if string(hdr[:len(tagPrefix)]) != tagPrefix {
		return 0, ErrBadMagic
	}
	switch hdr[len(tagPrefix)] {
	case 'R':
		return Raw, nil
	case 'M':
		return MDCT, nil
	case 'S':
		return STFT, nil
	}
	if hdr[len(tagPrefix)] <= MaxChannels {
		return Square, nil
	}
	return 0, ErrBadMagic
}
