/*
NAME
  decoder.go

DESCRIPTION
  decoder.go provides the ANMF Decoder, which reads a container, rebuilds
  each chunk from its factors and side data, and inverse transforms the
  reassembled chunks back to audio.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package anmf

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/audionmf/codec/entropy"
	"github.com/ausocean/audionmf/codec/huffman"
	"github.com/ausocean/audionmf/codec/matrix"
	"github.com/ausocean/audionmf/codec/pcm"
	"github.com/ausocean/audionmf/codec/quant"
	"github.com/ausocean/audionmf/codec/transform"
)

// Decoder reconstructs audio assets from ANMF containers. Block sizes and
// chunk shapes are recovered from the container, so a Decoder needs no
// configuration beyond the mu-law parameters and entropy profiles used by
// the STFT variant, which default to the encoder's defaults.
type Decoder struct {
	muW, muH float64
	maxElems int
	profiles *entropy.Profiles
	coef     *entropy.Coder
	phase    *entropy.Coder

	log logging.Logger
}

// DecodeMu is an option that can be passed to NewDecoder to set the mu-law
// parameters the STFT variant's factors were companded with.
func DecodeMu(muW, muH float64) func(*Decoder) error {
	return func(d *Decoder) error {
		if muW <= 0 || muH <= 0 {
			return fmt.Errorf("%w: W %v, H %v", ErrInvalidMu, muW, muH)
		}
		d.muW, d.muH = muW, muH
		return nil
	}
}

// DecodeProfiles is an option that can be passed to NewDecoder to set the
// entropy coding profiles of the STFT variant.
func DecodeProfiles(p *entropy.Profiles) func(*Decoder) error {
	return func(d *Decoder) error {
		if p == nil {
			return errors.New("nil profiles")
		}
		d.profiles = p
		return nil
	}
}

// DecodeMaxElements is an option that can be passed to NewDecoder to limit
// the number of reconstructed transform elements of each channel. Chunks
// whose factor product would exceed the limit are rejected before they are
// multiplied.
func DecodeMaxElements(n int) func(*Decoder) error {
	return func(d *Decoder) error {
		if n < 1 {
			return fmt.Errorf("invalid element limit %d", n)
		}
		d.maxElems = n
		return nil
	}
}

// NewDecoder returns a Decoder configured by the given options.
func NewDecoder(log logging.Logger, options ...func(*Decoder) error) (*Decoder, error) {
	d := &Decoder{muW: defaultMuW, muH: defaultMuH, maxElems: defaultMaxElems, log: log}
	for _, option := range options {
		err := option(d)
		if err != nil {
			return nil, fmt.Errorf("option failed with error: %w", err)
		}
	}
	if d.profiles == nil {
		d.profiles = entropy.DefaultProfiles()
	}
	var err error
	d.coef, d.phase, err = coders(d.profiles)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Decode reads a container from r and returns the reconstructed asset.
// Malformed or truncated input yields an error satisfying
// errors.Is(err, ErrFormat). Decoding stops between chunks if ctx is
// cancelled.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (pcm.Asset, error) {
	var hdr [maxTagLen]byte
	_, err := io.ReadFull(r, hdr[:])
	if err != nil {
		return pcm.Asset{}, formatErr(err)
	}
	v, err := Detect(hdr[:])
	if err != nil {
		return pcm.Asset{}, err
	}

	// The Square tag is one byte shorter, so its fifth byte is the low byte
	// of the channel count.
	var nc uint16
	if v == Square {
		var hi [1]byte
		_, err = io.ReadFull(r, hi[:])
		if err != nil {
			return pcm.Asset{}, formatErr(err)
		}
		nc = uint16(hdr[len(tagPrefix)]) | uint16(hi[0])<<8
	} else {
		nc, err = readUint16(r)
		if err != nil {
			return pcm.Asset{}, err
		}
	}
	if nc == 0 || nc > MaxChannels {
		return pcm.Asset{}, fmt.Errorf("%w: %w: %d", ErrFormat, ErrChannels, nc)
	}
	rate, err := readUint32(r)
	if err != nil {
		return pcm.Asset{}, err
	}

	d.log.Info("decoding container", "variant", v, "channels", nc, "rate", rate)
	a := pcm.Asset{Rate: uint(rate), Channels: make([]pcm.Channel, nc)}
	for c := range a.Channels {
		err = ctx.Err()
		if err != nil {
			return pcm.Asset{}, err
		}
		s, err := d.decodeChannel(ctx, r, v)
		if err != nil {
			return pcm.Asset{}, fmt.Errorf("could not decode channel %d: %w", c, formatErr(err))
		}
		a.Channels[c] = pcm.ChannelFromFloats(s)
		d.log.Debug("decoded channel", "channel", c, "samples", len(s))
	}
	for c, ch := range a.Channels {
		if len(ch) != a.Len() {
			return pcm.Asset{}, fmt.Errorf("%w: channel %d has %d samples, channel 0 has %d", ErrFormat, c, len(ch), a.Len())
		}
	}
	return a, nil
}

func (d *Decoder) decodeChannel(ctx context.Context, r io.Reader, v Variant) ([]float64, error) {
	padding, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := &budget{left: uint64(d.maxElems)}
	switch v {
	case Square:
		return d.decodeSquare(ctx, r, b, int(padding), int(n))
	case Raw:
		return d.decodeRaw(ctx, r, b, int(padding), int(n))
	case MDCT:
		return d.decodeMDCT(ctx, r, b, int(padding), int(n))
	case STFT:
		return d.decodeSTFT(ctx, r, b, int(padding), int(n))
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, v)
}

func (d *Decoder) decodeSquare(ctx context.Context, r io.Reader, b *budget, padding, n int) ([]float64, error) {
	if n > 1 {
		return nil, fmt.Errorf("%w: %d chunks in square channel", ErrFormat, n)
	}
	chunks, err := readFactors(ctx, r, b, n, matrix.Float64)
	if err != nil {
		return nil, err
	}
	var s []float64
	if n == 1 {
		s = matrix.Flatten(chunks[0])
	}
	return trim(s, padding)
}

func (d *Decoder) decodeRaw(ctx context.Context, r io.Reader, b *budget, padding, n int) ([]float64, error) {
	chunks, err := readFactors(ctx, r, b, n, matrix.Float32)
	if err != nil {
		return nil, err
	}
	var s []float64
	for _, c := range chunks {
		s = append(s, matrix.Flatten(c)...)
	}
	return trim(s, padding)
}

func (d *Decoder) decodeMDCT(ctx context.Context, r io.Reader, b *budget, padding, n int) ([]float64, error) {
	chunks, err := readFactors(ctx, r, b, n, matrix.Float32)
	if err != nil {
		return nil, err
	}
	m, err := stack(chunks)
	if err != nil {
		return nil, err
	}
	return transform.MDCT{}.Inverse(m, padding)
}

func (d *Decoder) decodeSTFT(ctx context.Context, r io.Reader, b *budget, padding, n int) ([]float64, error) {
	pb, err := entropy.ReadBlock(r)
	if err != nil {
		return nil, err
	}
	pg, err := d.phase.DecodeGrid(pb)
	if err != nil {
		return nil, err
	}
	pq, err := quant.NewUniform(-math.Pi, math.Pi, d.phase.Levels())
	if err != nil {
		return nil, err
	}
	hq, err := quant.NewUniform(0, 1, d.coef.Levels())
	if err != nil {
		return nil, err
	}

	var chunks []*mat.Dense
	for i := 0; i < n; i++ {
		err = ctx.Err()
		if err != nil {
			return nil, err
		}
		c, err := d.readSTFTChunk(r, b, hq)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		chunks = append(chunks, c)
	}
	mag, err := stack(chunks)
	if err != nil {
		return nil, err
	}

	phase, err := pq.DequantizeGrid(pg)
	if err != nil {
		return nil, fmt.Errorf("%w: phase: %w", ErrFormat, err)
	}
	spec, err := transform.FromPolar(mag, phase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return transform.STFT{}.Inverse(spec, padding)
}

func (d *Decoder) readSTFTChunk(r io.Reader, b *budget, hq *quant.Uniform) (*mat.Dense, error) {
	shift, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	lo, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	hi, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("%w: scale range [%v, %v]", ErrFormat, lo, hi)
	}

	w, err := matrix.Read(r, matrix.Uint32)
	if err != nil {
		return nil, fmt.Errorf("W: %w", err)
	}
	w, err = quant.ScaleMatrix(w, 0, math.MaxUint32, 0, 1)
	if err != nil {
		return nil, err
	}
	w, err = quant.ScaleMatrix(quant.ExpandMatrix(w, d.muW), 0, 1, lo, hi)
	if err != nil {
		return nil, err
	}

	hb, err := entropy.ReadBlock(r)
	if err != nil {
		return nil, fmt.Errorf("H: %w", err)
	}
	hg, err := d.coef.DecodeGrid(hb)
	if err != nil {
		return nil, fmt.Errorf("H: %w", err)
	}
	h, err := hq.DequantizeGrid(hg)
	if err != nil {
		return nil, fmt.Errorf("%w: H: %w", ErrFormat, err)
	}
	h, err = quant.ScaleMatrix(quant.ExpandMatrix(h, d.muH), 0, 1, lo, hi)
	if err != nil {
		return nil, err
	}
	return product(w, h, shift, b)
}

// readFactors reads n chunks of shift, W and H and returns each chunk's
// reconstruction W·H - shift.
func readFactors(ctx context.Context, r io.Reader, b *budget, n int, k matrix.Kind) ([]*mat.Dense, error) {
	var chunks []*mat.Dense
	for i := 0; i < n; i++ {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}
		shift, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		w, err := matrix.Read(r, k)
		if err != nil {
			return nil, fmt.Errorf("chunk %d W: %w", i, err)
		}
		h, err := matrix.Read(r, k)
		if err != nil {
			return nil, fmt.Errorf("chunk %d H: %w", i, err)
		}
		m, err := product(w, h, shift, b)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		chunks = append(chunks, m)
	}
	return chunks, nil
}

// budget counts the transform elements a channel may still reconstruct.
type budget struct {
	left uint64
}

// take charges rows*cols elements against b.
func (b *budget) take(rows, cols int) error {
	n := uint64(rows) * uint64(cols)
	if n > b.left {
		return fmt.Errorf("%w: %dx%d chunk, %d elements left", ErrTooLarge, rows, cols, b.left)
	}
	b.left -= n
	return nil
}

// product returns W·H - shift, charging the product's size to b before
// it is allocated.
func product(w, h *mat.Dense, shift float64, b *budget) (*mat.Dense, error) {
	rows, k := w.Dims()
	hk, cols := h.Dims()
	if k != hk {
		return nil, fmt.Errorf("%w: %w: W has %d columns, H has %d rows", ErrFormat, matrix.ErrDimensionMismatch, k, hk)
	}
	err := b.take(rows, cols)
	if err != nil {
		return nil, err
	}
	var m mat.Dense
	m.Mul(w, h)
	matrix.Unshift(&m, shift)
	return &m, nil
}

func stack(chunks []*mat.Dense) (*mat.Dense, error) {
	ms := make([]mat.Matrix, len(chunks))
	for i, c := range chunks {
		ms[i] = c
	}
	m, err := matrix.StackRows(ms...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return m, nil
}

// trim drops the last padding samples of s.
func trim(s []float64, padding int) ([]float64, error) {
	if padding > len(s) {
		return nil, fmt.Errorf("%w: padding %d exceeds %d samples", ErrFormat, padding, len(s))
	}
	return s[:len(s)-padding], nil
}

// formatErr marks errors caused by short or malformed input as format
// errors.
func formatErr(err error) error {
	switch {
	case err == nil, errors.Is(err, ErrFormat):
		return err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, matrix.ErrTruncated), errors.Is(err, entropy.ErrTruncated):
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	case errors.Is(err, matrix.ErrEmpty), errors.Is(err, matrix.ErrDimensionMismatch),
		errors.Is(err, matrix.ErrTooLarge),
		errors.Is(err, huffman.ErrNoEOS), errors.Is(err, entropy.ErrRowCount),
		errors.Is(err, transform.ErrShape), errors.Is(err, transform.ErrBlockSize),
		errors.Is(err, transform.ErrPadding):
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	_, err := io.ReadFull(r, b[:])
	if err != nil {
		return 0, formatErr(err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	_, err := io.ReadFull(r, b[:])
	if err != nil {
		return 0, formatErr(err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readFloat64(r io.Reader) (float64, error) {
	var b [8]byte
	_, err := io.ReadFull(r, b[:])
	if err != nil {
		return 0, formatErr(err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}
