/*
NAME
  flac.go

DESCRIPTION
  flac.go provides functionality for the decoding of FLAC compressed audio
  into pcm.Assets and the encoding of pcm.Assets as FLAC.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package flac provides functionality for the decoding and encoding of FLAC
// compressed audio.
package flac

import (
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"github.com/ausocean/audionmf/codec/pcm"
)

var errParse = errors.New("could not parse FLAC")

// Read decodes a FLAC stream into an Asset with samples rescaled to 16 bits.
func Read(r io.Reader) (pcm.Asset, error) {
	stream, err := flac.Parse(r)
	if err != nil {
		return pcm.Asset{}, fmt.Errorf("%w: %v", errParse, err)
	}

	a := pcm.Asset{
		Rate:     uint(stream.Info.SampleRate),
		Channels: make([]pcm.Channel, stream.Info.NChannels),
	}
	if stream.Info.NSamples != 0 {
		for c := range a.Channels {
			a.Channels[c] = make(pcm.Channel, 0, stream.Info.NSamples)
		}
	}
	bps := int(stream.Info.BitsPerSample)
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			return a, nil
		} else if err != nil {
			return pcm.Asset{}, err
		}
		err = appendFrame(&a, f, bps)
		if err != nil {
			return pcm.Asset{}, err
		}
	}
}

// appendFrame appends the samples of each subframe of f to the matching
// channel of a.
func appendFrame(a *pcm.Asset, f *frame.Frame, bps int) error {
	if len(f.Subframes) != len(a.Channels) {
		return fmt.Errorf("frame has %d subframes for %d channels", len(f.Subframes), len(a.Channels))
	}
	for c, sub := range f.Subframes {
		for _, s := range sub.Samples[:sub.NSamples] {
			a.Channels[c] = append(a.Channels[c], scale(s, bps))
		}
	}
	return nil
}

// scale shifts a sample of bps bits to 16 bits.
func scale(s int32, bps int) int16 {
	if bps > 16 {
		return int16(s >> (bps - 16))
	}
	return int16(s << (16 - bps))
}

// Encoding parameters.
const (
	blockSize  = 4096
	fixedOrder = 2
	maxRice    = 30 // 5 bit Rice parameters, 31 is the escape code.
	maxRate    = 655350
	channelMax = 8
)

var errUnsupported = errors.New("asset cannot be stored as FLAC")

// Write encodes a as a 16 bit FLAC stream. Each block of each channel is
// predicted with a second order fixed polynomial and its residual is Rice
// coded. If w is also an io.Seeker the stream info is rewritten with the
// sample count and checksum once all frames are written. w is not closed.
func Write(w io.Writer, a pcm.Asset) error {
	err := a.Validate()
	if err != nil {
		return err
	}
	nc := len(a.Channels)
	if nc > channelMax || a.Rate > maxRate {
		return fmt.Errorf("%w: %d channels at %d Hz", errUnsupported, nc, a.Rate)
	}

	// The encoder closes writers that implement io.Closer.
	var out io.Writer = struct{ io.Writer }{w}
	if ws, ok := w.(io.WriteSeeker); ok {
		out = struct{ io.WriteSeeker }{ws}
	}
	enc, err := flac.NewEncoder(out, &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  blockSize,
		SampleRate:    uint32(a.Rate),
		NChannels:     uint8(nc),
		BitsPerSample: 16,
	})
	if err != nil {
		return fmt.Errorf("could not create FLAC encoder: %w", err)
	}

	for off := 0; off < a.Len(); off += blockSize {
		n := min(blockSize, a.Len()-off)
		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				Channels:          frame.Channels(nc - 1),
				BitsPerSample:     16,
			},
			Subframes: make([]*frame.Subframe, nc),
		}
		for c, ch := range a.Channels {
			f.Subframes[c] = subframe(ch[off : off+n])
		}
		err = enc.WriteFrame(f)
		if err != nil {
			return fmt.Errorf("could not write frame at sample %d: %w", off, err)
		}
	}
	return enc.Close()
}

// subframe returns a fixed predictor subframe holding s, or a verbatim one
// if s is too short to predict.
func subframe(s pcm.Channel) *frame.Subframe {
	samples := make([]int32, len(s))
	for i, v := range s {
		samples[i] = int32(v)
	}
	sub := &frame.Subframe{Samples: samples, NSamples: len(samples)}
	if len(samples) <= fixedOrder {
		sub.Pred = frame.PredVerbatim
		return sub
	}
	sub.Pred = frame.PredFixed
	sub.Order = fixedOrder
	sub.ResidualCodingMethod = frame.ResidualCodingMethodRice2
	sub.RiceSubframe = &frame.RiceSubframe{
		Partitions: []frame.RicePartition{{Param: riceParam(samples)}},
	}
	return sub
}

// riceParam returns a Rice parameter near log2 of the mean zigzag coded
// second order residual of s.
func riceParam(s []int32) uint {
	var sum uint64
	for i := fixedOrder; i < len(s); i++ {
		r := s[i] - 2*s[i-1] + s[i-2]
		sum += uint64(uint32(r<<1) ^ uint32(r>>31))
	}
	mean := sum / uint64(len(s)-fixedOrder)
	if mean == 0 {
		return 0
	}
	return min(uint(bits.Len64(mean))-1, maxRice)
}
