/*
NAME
  pcm.go

DESCRIPTION
  pcm.go contains types and functions for holding and processing 16 bit PCM
  audio as per-channel sample sequences.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pcm provides the audio asset type consumed and produced by the
// NMF codec, and functions for converting and processing PCM audio.
package pcm

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// SampleFormat is the format that a PCM Buffer's samples can be in.
type SampleFormat int

// Used to represent an unknown format.
const (
	Unknown SampleFormat = -1
)

// Sample formats that we use.
const (
	S16_LE SampleFormat = iota
	S32_LE
)

// BufferFormat contains the format for a PCM Buffer.
type BufferFormat struct {
	SFormat  SampleFormat
	Rate     uint
	Channels uint
}

// Buffer contains a buffer of interleaved PCM data and the format that it
// is in.
type Buffer struct {
	Format BufferFormat
	Data   []byte
}

var (
	ErrNoChannels     = errors.New("asset has no channels")
	ErrLengthMismatch = errors.New("channels have unequal sample counts")
	ErrInvalidRate    = errors.New("invalid sample rate")
)

// Channel is a sequence of signed 16 bit samples.
type Channel []int16

// Floats returns the samples of c as float64 values in the 16 bit range.
func (c Channel) Floats() []float64 {
	f := make([]float64, len(c))
	for i, s := range c {
		f[i] = float64(s)
	}
	return f
}

// ChannelFromFloats rounds each value of f to the nearest integer, clamped
// to the 16 bit range.
func ChannelFromFloats(f []float64) Channel {
	c := make(Channel, len(f))
	for i, v := range f {
		c[i] = clamp16(v)
	}
	return c
}

func clamp16(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}

// Asset is a piece of audio: a sample rate and one or more channels of
// equal length.
type Asset struct {
	Rate     uint
	Channels []Channel
}

// Len returns the number of samples per channel.
func (a Asset) Len() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Validate checks that a has a rate and at least one channel, and that all
// channels have the same length.
func (a Asset) Validate() error {
	if a.Rate == 0 {
		return ErrInvalidRate
	}
	if len(a.Channels) == 0 {
		return ErrNoChannels
	}
	for i, c := range a.Channels {
		if len(c) != len(a.Channels[0]) {
			return errors.Wrapf(ErrLengthMismatch, "channel %d has %d samples, channel 0 has %d", i, len(c), len(a.Channels[0]))
		}
	}
	return nil
}

// FromBuffer deinterleaves b into an Asset. S32_LE samples are reduced to
// their upper 16 bits.
func FromBuffer(b Buffer) (Asset, error) {
	if b.Format.Channels == 0 {
		return Asset{}, ErrNoChannels
	}
	var width int
	switch b.Format.SFormat {
	case S16_LE:
		width = 2
	case S32_LE:
		width = 4
	default:
		return Asset{}, errors.Errorf("unhandled sample format: %v", b.Format.SFormat)
	}
	nc := int(b.Format.Channels)
	frame := width * nc
	if len(b.Data)%frame != 0 {
		return Asset{}, errors.Errorf("%d bytes is not a whole number of %d byte frames", len(b.Data), frame)
	}

	n := len(b.Data) / frame
	a := Asset{Rate: b.Format.Rate, Channels: make([]Channel, nc)}
	for c := range a.Channels {
		a.Channels[c] = make(Channel, n)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < nc; c++ {
			off := i*frame + c*width
			switch b.Format.SFormat {
			case S16_LE:
				a.Channels[c][i] = int16(binary.LittleEndian.Uint16(b.Data[off:]))
			case S32_LE:
				a.Channels[c][i] = int16(int32(binary.LittleEndian.Uint32(b.Data[off:])) >> 16)
			}
		}
	}
	return a, nil
}

// Buffer interleaves the channels of a into an S16_LE Buffer.
func (a Asset) Buffer() (Buffer, error) {
	err := a.Validate()
	if err != nil {
		return Buffer{}, err
	}
	nc := len(a.Channels)
	data := make([]byte, 2*nc*a.Len())
	for i := 0; i < a.Len(); i++ {
		for c, ch := range a.Channels {
			binary.LittleEndian.PutUint16(data[2*(i*nc+c):], uint16(ch[i]))
		}
	}
	return Buffer{
		Format: BufferFormat{SFormat: S16_LE, Rate: a.Rate, Channels: uint(nc)},
		Data:   data,
	}, nil
}

// Downmix returns a single channel asset whose samples are the rounded mean
// of the channels of a.
func Downmix(a Asset) (Asset, error) {
	err := a.Validate()
	if err != nil {
		return Asset{}, err
	}
	if len(a.Channels) == 1 {
		return a, nil
	}
	mono := make([]float64, a.Len())
	for _, c := range a.Channels {
		for i, s := range c {
			mono[i] += float64(s)
		}
	}
	for i := range mono {
		mono[i] /= float64(len(a.Channels))
	}
	return Asset{Rate: a.Rate, Channels: []Channel{ChannelFromFloats(mono)}}, nil
}

// resampleTaps is the length of the anti-aliasing filter used by Resample.
const resampleTaps = 256

// Resample returns a resampled to rate Hz. Each channel is low-pass filtered
// at the new Nyquist frequency and then decimated.
// Notes:
//   - Only downsampling is implemented and a's rate must be divisible by rate.
//   - Samples left over after the last whole decimation period are dropped.
func Resample(a Asset, rate uint) (Asset, error) {
	err := a.Validate()
	if err != nil {
		return Asset{}, err
	}
	if a.Rate == rate {
		return a, nil
	}
	if rate == 0 {
		return Asset{}, errors.Wrapf(ErrInvalidRate, "unable to convert to %v Hz", rate)
	}

	// Calculate sample rate ratio ratioFrom:ratioTo.
	rateGcd := gcd(rate, a.Rate)
	ratioFrom := int(a.Rate / rateGcd)
	ratioTo := int(rate / rateGcd)

	// ratioTo = 1 is the only number that will result in an even sampling.
	if ratioTo != 1 {
		return Asset{}, errors.Errorf("unhandled from:to rate ratio %v:%v: 'to' must be 1", ratioFrom, ratioTo)
	}

	lp, err := NewLowPass(float64(rate)/2, a.Rate, resampleTaps)
	if err != nil {
		return Asset{}, errors.Wrap(err, "could not create anti-aliasing filter")
	}

	out := Asset{Rate: rate, Channels: make([]Channel, len(a.Channels))}
	for c, ch := range a.Channels {
		filtered, err := lp.Apply(ch.Floats())
		if err != nil {
			return Asset{}, errors.Wrapf(err, "could not filter channel %d", c)
		}
		dec := make([]float64, len(filtered)/ratioFrom)
		for i := range dec {
			dec[i] = filtered[i*ratioFrom]
		}
		out.Channels[c] = ChannelFromFloats(dec)
	}
	return out, nil
}

// gcd is used for calculating the greatest common divisor of two positive integers, a and b.
// assumes given a and b are positive.
func gcd(a, b uint) uint {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// String returns the string representation of a SampleFormat.
func (f SampleFormat) String() string {
	switch f {
	case S16_LE:
		return "S16_LE"
	case S32_LE:
		return "S32_LE"
	default:
		return "Unknown"
	}
}

// SFFromString takes a string representing a sample format and returns the corresponding SampleFormat.
func SFFromString(s string) (SampleFormat, error) {
	switch s {
	case "S16_LE":
		return S16_LE, nil
	case "S32_LE":
		return S32_LE, nil
	default:
		return Unknown, errors.Errorf("unknown sample format (%s)", s)
	}
}
