/*
NAME
  flac_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package flac

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/ausocean/audionmf/codec/pcm"
	"github.com/ausocean/audionmf/codec/wav"
)

func TestScale(t *testing.T) {
	tests := []struct {
		s    int32
		bps  int
		want int16
	}{
		{s: 1000, bps: 16, want: 1000},
		{s: -0x800000, bps: 24, want: math.MinInt16},
		{s: 0x7fffff, bps: 24, want: math.MaxInt16},
		{s: 100, bps: 8, want: 100 << 8},
		{s: -3, bps: 12, want: -3 << 4},
	}
	for _, tt := range tests {
		if got := scale(tt.s, tt.bps); got != tt.want {
			t.Errorf("scale(%d, %d) = %d, want %d", tt.s, tt.bps, got, tt.want)
		}
	}
}

func TestAppendFrame(t *testing.T) {
	a := pcm.Asset{Rate: 8000, Channels: make([]pcm.Channel, 2)}
	f := &frame.Frame{
		Subframes: []*frame.Subframe{
			{Samples: []int32{1, 2, 3}, NSamples: 3},
			{Samples: []int32{-1, -2, -3}, NSamples: 3},
		},
	}
	for i := 0; i < 2; i++ {
		err := appendFrame(&a, f, 16)
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
	}
	want := []pcm.Channel{{1, 2, 3, 1, 2, 3}, {-1, -2, -3, -1, -2, -3}}
	if !cmp.Equal(a.Channels, want) {
		t.Errorf("unexpected channels\n%v", cmp.Diff(want, a.Channels))
	}

	mono := pcm.Asset{Rate: 8000, Channels: make([]pcm.Channel, 1)}
	if err := appendFrame(&mono, f, 16); err == nil {
		t.Error("expected error for subframe count mismatch")
	}
}

func TestReadInvalid(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("RIFF....WAVE"))); !errors.Is(err, errParse) {
		t.Errorf("expected errParse, got %v", err)
	}
}

func TestWriteRead(t *testing.T) {
	// ramp returns n samples that wrap around the int16 range.
	ramp := func(n, step int) pcm.Channel {
		c := make(pcm.Channel, n)
		for i := range c {
			c[i] = int16(i * step)
		}
		return c
	}
	noise := make(pcm.Channel, 5000)
	x := uint32(1)
	for i := range noise {
		x = x*1664525 + 1013904223
		noise[i] = int16(x >> 16)
	}

	tests := []struct {
		name string
		a    pcm.Asset
	}{
		{name: "mono", a: pcm.Asset{Rate: 8000, Channels: []pcm.Channel{ramp(100, 3)}}},
		{name: "stereo over several blocks", a: pcm.Asset{Rate: 44100, Channels: []pcm.Channel{ramp(2*blockSize+7, 11), noise[:2*blockSize+7]}}},
		{name: "short final block", a: pcm.Asset{Rate: 22050, Channels: []pcm.Channel{ramp(blockSize+2, 1)}}},
		{name: "extremes", a: pcm.Asset{Rate: 16000, Channels: []pcm.Channel{{math.MaxInt16, math.MinInt16, math.MaxInt16, math.MinInt16, 0}}}},
		{name: "uncommon rate", a: pcm.Asset{Rate: 11025, Channels: []pcm.Channel{noise}}},
	}
	for _, test := range tests {
		var buf bytes.Buffer
		err := Write(&buf, test.a)
		if err != nil {
			t.Fatalf("%s: could not write: %v", test.name, err)
		}
		got, err := Read(&buf)
		if err != nil {
			t.Fatalf("%s: could not read: %v", test.name, err)
		}
		if !cmp.Equal(got, test.a) {
			t.Errorf("%s: round trip mismatch\n%v", test.name, cmp.Diff(test.a, got))
		}
	}

	// With a seekable writer the stream info records the sample count.
	a := pcm.Asset{Rate: 8000, Channels: []pcm.Channel{ramp(300, 5), ramp(300, -5)}}
	ws := &wav.WriteSeeker{}
	err := Write(ws, a)
	if err != nil {
		t.Fatalf("could not write: %v", err)
	}
	stream, err := flac.Parse(bytes.NewReader(ws.Bytes()))
	if err != nil {
		t.Fatalf("could not parse: %v", err)
	}
	if stream.Info.NSamples != 300 || stream.Info.NChannels != 2 {
		t.Errorf("unexpected stream info: %d samples, %d channels", stream.Info.NSamples, stream.Info.NChannels)
	}
	got, err := Read(bytes.NewReader(ws.Bytes()))
	if err != nil {
		t.Fatalf("could not read: %v", err)
	}
	if !cmp.Equal(got, a) {
		t.Errorf("seekable round trip mismatch\n%v", cmp.Diff(a, got))
	}
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name string
		a    pcm.Asset
		want error
	}{
		{name: "no channels", a: pcm.Asset{Rate: 8000}, want: pcm.ErrNoChannels},
		{name: "no rate", a: pcm.Asset{Channels: []pcm.Channel{{1}}}, want: pcm.ErrInvalidRate},
		{name: "nine channels", a: pcm.Asset{Rate: 8000, Channels: make([]pcm.Channel, 9)}, want: errUnsupported},
		{name: "high rate", a: pcm.Asset{Rate: 1 << 20, Channels: []pcm.Channel{{1}}}, want: errUnsupported},
	}
	for _, test := range tests {
		err := Write(io.Discard, test.a)
		if !errors.Is(err, test.want) {
			t.Errorf("%s: got error %v, want %v", test.name, err, test.want)
		}
	}
}

func TestRiceParam(t *testing.T) {
	tests := []struct {
		s    []int32
		want uint
	}{
		{s: []int32{5, 5, 5, 5}, want: 0},
		{s: []int32{0, 1, 2, 3, 4}, want: 0},
		{s: []int32{0, 0, 8, 0, 8}, want: 4},
		{s: []int32{0, 0, math.MaxInt16, math.MinInt16, math.MaxInt16}, want: 17},
	}
	for i, test := range tests {
		if got := riceParam(test.s); got != test.want {
			t.Errorf("test %d: got %d, want %d", i, got, test.want)
		}
	}
}
