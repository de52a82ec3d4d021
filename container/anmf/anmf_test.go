/*
NAME
  anmf_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package anmf

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/audionmf/codec/matrix"
	"github.com/ausocean/audionmf/codec/pcm"
)

const rate = 8000

func TestDetect(t *testing.T) {
	tests := []struct {
		hdr     []byte
		want    Variant
		wantErr error
	}{
		{hdr: []byte("ANMF\x01\x00"), want: Square},
		{hdr: []byte("ANMF\x40\x00"), want: Square},
		{hdr: []byte("ANMFR\x01\x00"), want: Raw},
		{hdr: []byte("ANMFM\x02\x00"), want: MDCT},
		{hdr: []byte("ANMFS\x01\x00"), want: STFT},
		{hdr: []byte("ANMFX\x01\x00"), wantErr: ErrBadMagic},
		{hdr: []byte("RIFF\x01\x00"), wantErr: ErrBadMagic},
		{hdr: []byte("ANMF"), wantErr: ErrTruncated},
		{hdr: nil, wantErr: ErrTruncated},
	}

	for i, test := range tests {
		got, err := Detect(test.hdr)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("did not get expected error for test %d\nGot: %v\nWant: %v", i, err, test.wantErr)
			continue
		}
		if test.wantErr != nil {
			if !errors.Is(err, ErrFormat) {
				t.Errorf("error for test %d does not wrap ErrFormat: %v", i, err)
			}
			continue
		}
		if got != test.want {
			t.Errorf("did not get expected variant for test %d\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestVariantTags(t *testing.T) {
	for _, name := range Variants() {
		v, err := ParseVariant(name)
		if err != nil {
			t.Fatalf("could not parse variant %q: %v", name, err)
		}
		if v.String() != name {
			t.Errorf("variant %q has name %q", name, v.String())
		}
		got, err := Detect(append(v.Tag(), 1, 0))
		if err != nil {
			t.Errorf("could not detect tag of %v: %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("tag of %v detected as %v", v, got)
		}
	}

	_, err := ParseVariant("wavelet")
	if !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("did not get expected error for unknown variant: %v", err)
	}
	if Variant(9).Tag() != nil {
		t.Errorf("unexpected tag for unknown variant")
	}
}

// roundTrip encodes a with the given options and decodes the result.
func roundTrip(t *testing.T, a pcm.Asset, opts ...func(*Encoder) error) (pcm.Asset, []byte) {
	t.Helper()
	enc, err := NewEncoder((*testLogger)(t), opts...)
	if err != nil {
		t.Fatalf("could not create encoder: %v", err)
	}
	var buf bytes.Buffer
	err = enc.Encode(context.Background(), &buf, a)
	if err != nil {
		t.Fatalf("could not encode: %v", err)
	}
	data := append([]byte(nil), buf.Bytes()...)

	dec, err := NewDecoder((*testLogger)(t))
	if err != nil {
		t.Fatalf("could not create decoder: %v", err)
	}
	got, err := dec.Decode(context.Background(), &buf)
	if err != nil {
		t.Fatalf("could not decode: %v", err)
	}
	return got, data
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		opts   []func(*Encoder) error
		minSNR float64
	}{
		{
			name:   "square",
			opts:   []func(*Encoder) error{WithVariant(Square), WithRank(8), WithMaxIter(500)},
			minSNR: 6,
		},
		{
			name:   "raw",
			opts:   []func(*Encoder) error{WithVariant(Raw), WithRawShape(20, 10), WithRank(8), WithMaxIter(500)},
			minSNR: 6,
		},
		{
			name:   "mdct",
			opts:   []func(*Encoder) error{WithVariant(MDCT), WithBlockSize(64), WithChunkSize(16), WithRank(12), WithMaxIter(500)},
			minSNR: 6,
		},
		{
			name:   "stft",
			opts:   []func(*Encoder) error{WithVariant(STFT), WithBlockSize(64), WithChunkSize(16), WithRank(12), WithMaxIter(500)},
			minSNR: 3,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a := pcm.Asset{Rate: rate, Channels: []pcm.Channel{tone(400, rate, 440, 8000)}}
			got, _ := roundTrip(t, a, test.opts...)
			if got.Rate != a.Rate {
				t.Errorf("did not get expected rate\nGot: %d\nWant: %d", got.Rate, a.Rate)
			}
			if len(got.Channels) != 1 || got.Len() != a.Len() {
				t.Fatalf("did not get expected shape\nGot: %d channels of %d\nWant: 1 channel of %d", len(got.Channels), got.Len(), a.Len())
			}
			q, err := pcm.Compare(a, got)
			if err != nil {
				t.Fatalf("could not compare: %v", err)
			}
			if q[0].SNR < test.minSNR {
				t.Errorf("SNR too low\nGot: %.2f dB\nWant: >= %.2f dB", q[0].SNR, test.minSNR)
			}
		})
	}
}

func TestRoundTripChannels(t *testing.T) {
	a := pcm.Asset{
		Rate: rate,
		Channels: []pcm.Channel{
			tone(300, rate, 440, 8000),
			tone(300, rate, 1000, 4000),
			make(pcm.Channel, 300),
		},
	}
	got, data := roundTrip(t, a, WithVariant(MDCT), WithBlockSize(32), WithChunkSize(8), WithRank(6), WithMaxIter(300))
	if !bytes.HasPrefix(data, []byte("ANMFM\x03\x00")) {
		t.Errorf("unexpected header % x", data[:7])
	}
	if len(got.Channels) != 3 || got.Len() != 300 {
		t.Fatalf("did not get expected shape: %d channels of %d", len(got.Channels), got.Len())
	}

	// A silent channel factorises exactly.
	if !cmp.Equal(got.Channels[2], a.Channels[2]) {
		t.Errorf("silent channel not preserved:\n%s", cmp.Diff(a.Channels[2], got.Channels[2]))
	}
}

func TestEmptyChannel(t *testing.T) {
	for _, v := range []Variant{Square, Raw} {
		a := pcm.Asset{Rate: rate, Channels: []pcm.Channel{{}}}
		got, data := roundTrip(t, a, WithVariant(v), WithRawShape(4, 4))
		want := append(v.Tag(), 1, 0, 0x40, 0x1f, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
		if !bytes.Equal(data, want) {
			t.Errorf("unexpected %v container\nGot: % x\nWant: % x", v, data, want)
		}
		if len(got.Channels) != 1 || got.Len() != 0 {
			t.Errorf("did not get empty %v channel: %d channels of %d", v, len(got.Channels), got.Len())
		}
	}
}

func TestDeterministic(t *testing.T) {
	a := pcm.Asset{
		Rate:     rate,
		Channels: []pcm.Channel{tone(600, rate, 440, 8000), tone(600, rate, 700, 3000)},
	}
	var outs [][]byte
	for _, workers := range []int{1, 4, 1} {
		enc, err := NewEncoder((*testLogger)(t), WithBlockSize(32), WithChunkSize(4), WithRank(2), WithMaxIter(50), WithWorkers(workers))
		if err != nil {
			t.Fatalf("could not create encoder: %v", err)
		}
		var buf bytes.Buffer
		err = enc.Encode(context.Background(), &buf, a)
		if err != nil {
			t.Fatalf("could not encode with %d workers: %v", workers, err)
		}
		outs = append(outs, buf.Bytes())
	}
	for i := 1; i < len(outs); i++ {
		if !bytes.Equal(outs[0], outs[i]) {
			t.Errorf("output %d differs from output 0", i)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		a    pcm.Asset
		want error
	}{
		{name: "no channels", a: pcm.Asset{Rate: rate}, want: pcm.ErrNoChannels},
		{name: "no rate", a: pcm.Asset{Channels: []pcm.Channel{{1}}}, want: pcm.ErrInvalidRate},
		{name: "ragged", a: pcm.Asset{Rate: rate, Channels: []pcm.Channel{{1, 2}, {1}}}, want: pcm.ErrLengthMismatch},
		{name: "too many channels", a: pcm.Asset{Rate: rate, Channels: make([]pcm.Channel, MaxChannels+1)}, want: ErrChannels},
	}

	enc, err := NewEncoder((*testLogger)(t))
	if err != nil {
		t.Fatalf("could not create encoder: %v", err)
	}
	for _, test := range tests {
		var buf bytes.Buffer
		err := enc.Encode(context.Background(), &buf, test.a)
		if !errors.Is(err, test.want) {
			t.Errorf("did not get expected error for %s\nGot: %v\nWant: %v", test.name, err, test.want)
		}
		if buf.Len() != 0 {
			t.Errorf("%d bytes written for failed %s encode", buf.Len(), test.name)
		}
	}
}

func TestOptionErrors(t *testing.T) {
	tests := []struct {
		opt  func(*Encoder) error
		want error
	}{
		{opt: WithVariant(Variant(7)), want: ErrUnknownVariant},
		{opt: WithBlockSize(0), want: ErrInvalidBlockSize},
		{opt: WithBlockSize(30), want: ErrInvalidBlockSize},
		{opt: WithChunkSize(0), want: ErrInvalidChunkSize},
		{opt: WithRank(-1), want: ErrInvalidRank},
		{opt: WithMaxIter(0), want: ErrInvalidMaxIter},
		{opt: WithTolerance(-0.5), want: ErrInvalidTolerance},
		{opt: WithWorkers(0), want: ErrInvalidWorkers},
		{opt: WithRawShape(0, 10), want: ErrInvalidChunkSize},
		{opt: WithMu(0, 1), want: ErrInvalidMu},
	}

	for i, test := range tests {
		_, err := NewEncoder((*testLogger)(t), test.opt)
		if !errors.Is(err, test.want) {
			t.Errorf("did not get expected error for test %d\nGot: %v\nWant: %v", i, err, test.want)
		}
	}

	_, err := NewDecoder((*testLogger)(t), DecodeMu(1, -1))
	if !errors.Is(err, ErrInvalidMu) {
		t.Errorf("did not get expected decoder error\nGot: %v\nWant: %v", err, ErrInvalidMu)
	}
}

func TestDecodeErrors(t *testing.T) {
	a := pcm.Asset{Rate: rate, Channels: []pcm.Channel{tone(200, rate, 440, 8000)}}
	for _, v := range []Variant{Square, Raw, MDCT, STFT} {
		_, data := roundTrip(t, a, WithVariant(v), WithBlockSize(32), WithChunkSize(4), WithRawShape(10, 5), WithRank(2), WithMaxIter(20))

		dec, err := NewDecoder((*testLogger)(t))
		if err != nil {
			t.Fatalf("could not create decoder: %v", err)
		}
		for _, n := range []int{0, 3, 5, 6, 9, 14, 20, len(data) / 2, len(data) - 1} {
			_, err := dec.Decode(context.Background(), bytes.NewReader(data[:n]))
			if !errors.Is(err, ErrFormat) {
				t.Errorf("did not get format error decoding %v container cut to %d of %d bytes: %v", v, n, len(data), err)
			}
		}
	}

	dec, err := NewDecoder((*testLogger)(t))
	if err != nil {
		t.Fatalf("could not create decoder: %v", err)
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "bad magic", data: []byte("RIFF\x01\x00\x40\x1f\x00\x00"), want: ErrBadMagic},
		{name: "no channels", data: []byte("ANMFS\x00\x00\x40\x1f\x00\x00"), want: ErrChannels},
		{name: "too many channels", data: []byte("ANMFR\x41\x00\x40\x1f\x00\x00"), want: ErrChannels},
		{name: "square padding", data: []byte("ANMF\x01\x00\x40\x1f\x00\x00\x05\x00\x00\x00\x00\x00\x00\x00"), want: ErrFormat},
		{
			name: "overflowing matrix header",
			data: craft(t, "ANMFM", uint32(0), uint32(1), float64(0), uint32(1<<31), uint32(1<<31)),
			want: matrix.ErrTooLarge,
		},
	}
	for _, test := range tests {
		_, err := dec.Decode(context.Background(), bytes.NewReader(test.data))
		if !errors.Is(err, test.want) || !errors.Is(err, ErrFormat) {
			t.Errorf("did not get expected error for %s\nGot: %v\nWant: %v", test.name, err, test.want)
		}
	}
}

func TestDecodeLimits(t *testing.T) {
	ones := func(n int) []float32 {
		f := make([]float32, n)
		for i := range f {
			f[i] = 1
		}
		return f
	}

	// A 200000x1 W and 1x200000 H would reconstruct a 200000x200000 chunk.
	wide := craft(t, "ANMFR", uint32(0), uint32(1), float64(0),
		uint32(200000), uint32(1), ones(200000),
		uint32(1), uint32(200000), ones(200000),
	)
	// A 20x1 W and 1x20 H is small but over a limit of 100 elements.
	small := craft(t, "ANMFR", uint32(0), uint32(1), float64(0),
		uint32(20), uint32(1), ones(20),
		uint32(1), uint32(20), ones(20),
	)

	tests := []struct {
		name string
		data []byte
		opts []func(*Decoder) error
		want error
	}{
		{name: "default limit", data: wide, want: ErrTooLarge},
		{name: "small limit", data: small, opts: []func(*Decoder) error{DecodeMaxElements(100)}, want: ErrTooLarge},
		{name: "within limit", data: small, opts: []func(*Decoder) error{DecodeMaxElements(400)}},
	}
	for _, test := range tests {
		dec, err := NewDecoder((*testLogger)(t), test.opts...)
		if err != nil {
			t.Fatalf("could not create decoder: %v", err)
		}
		got, err := dec.Decode(context.Background(), bytes.NewReader(test.data))
		if !errors.Is(err, test.want) {
			t.Errorf("did not get expected error for %s\nGot: %v\nWant: %v", test.name, err, test.want)
		}
		if test.want != nil {
			if !errors.Is(err, ErrFormat) {
				t.Errorf("error for %s does not wrap ErrFormat: %v", test.name, err)
			}
			continue
		}
		if got.Len() != 400 {
			t.Errorf("unexpected sample count for %s: %d", test.name, got.Len())
		}
	}

	_, err := NewDecoder((*testLogger)(t), DecodeMaxElements(0))
	if err == nil {
		t.Error("expected error for zero element limit")
	}
}

func TestCancelled(t *testing.T) {
	a := pcm.Asset{Rate: rate, Channels: []pcm.Channel{tone(200, rate, 440, 8000)}}
	_, data := roundTrip(t, a, WithVariant(MDCT), WithBlockSize(32))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enc, err := NewEncoder((*testLogger)(t), WithBlockSize(32))
	if err != nil {
		t.Fatalf("could not create encoder: %v", err)
	}
	var buf bytes.Buffer
	err = enc.Encode(ctx, &buf, a)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("did not get expected encode error\nGot: %v\nWant: %v", err, context.Canceled)
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes written by cancelled encode", buf.Len())
	}

	dec, err := NewDecoder((*testLogger)(t))
	if err != nil {
		t.Fatalf("could not create decoder: %v", err)
	}
	_, err = dec.Decode(ctx, bytes.NewReader(data))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("did not get expected decode error\nGot: %v\nWant: %v", err, context.Canceled)
	}
}
