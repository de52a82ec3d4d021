/*
NAME
  wav.go

DESCRIPTION
  wav.go contains functions for reading and writing WAV files as pcm.Assets.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package wav provides functions for converting between WAV audio and
// pcm.Assets.
package wav

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ausocean/audionmf/codec/pcm"
)

// PCMFormat defines the value for pcm audio as defined by the wav std.
const PCMFormat = 1

// Bit depth of written files.
const bitDepth = 16

var (
	errInvalidFile     = errors.New("invalid wav file")
	errInvalidFormat   = errors.New("unsupported wav audio format")
	errInvalidBitDepth = errors.New("unsupported bit depth")
)

// Read decodes a PCM WAV file into an Asset. Samples of depths other than
// 16 bits are rescaled to 16 bits.
func Read(r io.ReadSeeker) (pcm.Asset, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return pcm.Asset{}, errInvalidFile
	}
	if dec.WavAudioFormat != PCMFormat {
		return pcm.Asset{}, fmt.Errorf("%w: %d", errInvalidFormat, dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return pcm.Asset{}, fmt.Errorf("could not decode samples: %w", err)
	}

	depth := int(dec.BitDepth)
	nc := int(dec.NumChans)
	a := pcm.Asset{Rate: uint(dec.SampleRate), Channels: make([]pcm.Channel, nc)}
	n := len(buf.Data) / nc
	for c := range a.Channels {
		a.Channels[c] = make(pcm.Channel, n)
	}
	for i := 0; i < n*nc; i++ {
		s, err := To16(buf.Data[i], depth)
		if err != nil {
			return pcm.Asset{}, err
		}
		a.Channels[i%nc][i/nc] = s
	}
	return a, nil
}

// To16 rescales a sample of the given bit depth to 16 bits. 8 bit samples
// are unsigned as per the wav std.
func To16(v, depth int) (int16, error) {
	switch depth {
	case 8:
		return int16((v - 128) << 8), nil
	case 16:
		return int16(v), nil
	case 24:
		return int16(v >> 8), nil
	case 32:
		return int16(v >> 16), nil
	}
	return 0, fmt.Errorf("%w: %d", errInvalidBitDepth, depth)
}

// Write encodes a as a 16 bit PCM WAV file.
func Write(w io.WriteSeeker, a pcm.Asset) error {
	err := a.Validate()
	if err != nil {
		return err
	}
	nc := len(a.Channels)
	enc := wav.NewEncoder(w, int(a.Rate), bitDepth, nc, PCMFormat)
	data := make([]int, 0, nc*a.Len())
	for i := 0; i < a.Len(); i++ {
		for _, c := range a.Channels {
			data = append(data, int(c[i]))
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: nc, SampleRate: int(a.Rate)},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	err = enc.Write(buf)
	if err != nil {
		return fmt.Errorf("could not write samples: %w", err)
	}
	return enc.Close()
}

// Encode returns a encoded as a 16 bit PCM WAV file.
func Encode(a pcm.Asset) ([]byte, error) {
	ws := &WriteSeeker{}
	err := Write(ws, a)
	if err != nil {
		return nil, err
	}
	return ws.Bytes(), nil
}
