/*
NAME
  encoder.go

DESCRIPTION
  encoder.go provides the ANMF Encoder, which transforms each channel of an
  audio asset, factorises the transform in row chunks and writes the factors
  and side data to a container.

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
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/audionmf/codec/entropy"
	"github.com/ausocean/audionmf/codec/matrix"
	"github.com/ausocean/audionmf/codec/nmf"
	"github.com/ausocean/audionmf/codec/pcm"
	"github.com/ausocean/audionmf/codec/quant"
	"github.com/ausocean/audionmf/codec/transform"
)

// Encoder compresses audio assets into ANMF containers. An Encoder may be
// used for any number of assets but not concurrently.
type Encoder struct {
	variant   Variant
	blockSize int
	chunkSize int
	rank      int
	maxIter   int
	tol       float64
	seed      int64
	workers   int
	rawRows   int
	rawCols   int
	muW, muH  float64

	profiles *entropy.Profiles
	coef     *entropy.Coder
	phase    *entropy.Coder

	// log is a function that will be used through the encoder code for logging.
	log logging.Logger
}

// NewEncoder returns an Encoder configured by the given options. Without
// options it encodes the STFT variant with default parameters.
func NewEncoder(log logging.Logger, options ...func(*Encoder) error) (*Encoder, error) {
	e := &Encoder{
		variant:   defaultVariant,
		blockSize: defaultBlockSize,
		chunkSize: defaultChunkSize,
		rank:      defaultRank,
		maxIter:   defaultMaxIter,
		seed:      defaultSeed,
		workers:   defaultWorkers,
		rawRows:   defaultRawRows,
		rawCols:   defaultRawCols,
		muW:       defaultMuW,
		muH:       defaultMuH,
		log:       log,
	}

	for _, option := range options {
		err := option(e)
		if err != nil {
			return nil, fmt.Errorf("option failed with error: %w", err)
		}
	}
	log.Debug("encoder options applied")

	if e.variant == STFT {
		if e.profiles == nil {
			e.profiles = entropy.DefaultProfiles()
		}
		var err error
		e.coef, e.phase, err = coders(e.profiles)
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

func coders(p *entropy.Profiles) (coef, phase *entropy.Coder, err error) {
	coef, err = entropy.NewCoder(p, entropy.Coefficients)
	if err != nil {
		return nil, nil, err
	}
	phase, err = entropy.NewCoder(p, entropy.Phase)
	if err != nil {
		return nil, nil, err
	}
	return coef, phase, nil
}

// Encode compresses a and writes the container to dst. The container is
// assembled in memory and nothing is written to dst unless every channel
// encodes successfully. Encoding stops between chunks if ctx is cancelled.
func (e *Encoder) Encode(ctx context.Context, dst io.Writer, a pcm.Asset) error {
	err := a.Validate()
	if err != nil {
		return errors.Wrap(err, "invalid asset")
	}
	if len(a.Channels) > MaxChannels {
		return errors.Wrapf(ErrChannels, "asset has %d channels", len(a.Channels))
	}
	if uint64(a.Rate) > math.MaxUint32 {
		return errors.Errorf("sample rate %d out of range", a.Rate)
	}

	var buf bytes.Buffer
	buf.Write(e.variant.Tag())
	writeUint16(&buf, uint16(len(a.Channels)))
	writeUint32(&buf, uint32(a.Rate))

	e.log.Info("encoding asset", "variant", e.variant, "channels", len(a.Channels), "samples", a.Len(), "rate", a.Rate)
	for c, ch := range a.Channels {
		err = ctx.Err()
		if err != nil {
			return err
		}
		before := buf.Len()
		err = e.encodeChannel(ctx, &buf, c, ch.Floats())
		if err != nil {
			return errors.Wrapf(err, "could not encode channel %d", c)
		}
		e.log.Info("encoded channel", "channel", c, "bytes", buf.Len()-before)
	}

	_, err = buf.WriteTo(dst)
	if err != nil {
		return errors.Wrap(err, "could not write container")
	}
	return nil
}

func (e *Encoder) encodeChannel(ctx context.Context, w *bytes.Buffer, c int, s []float64) error {
	switch e.variant {
	case Square:
		return e.encodeSquare(ctx, w, c, s)
	case Raw:
		return e.encodeRaw(ctx, w, c, s)
	case MDCT:
		return e.encodeMDCT(ctx, w, c, s)
	case STFT:
		return e.encodeSTFT(ctx, w, c, s)
	}
	return fmt.Errorf("%w: %d", ErrUnknownVariant, e.variant)
}

// encodeSquare lays the whole channel out as the smallest square matrix
// that holds it and factorises it as a single chunk.
func (e *Encoder) encodeSquare(ctx context.Context, w io.Writer, c int, s []float64) error {
	if len(s) == 0 {
		writeChannelHeader(w, 0, 0)
		return nil
	}
	side := int(math.Ceil(math.Sqrt(float64(len(s)))))
	padded, padding := transform.Pad(s, side*side)
	v, err := matrix.Reshape(padded, side, side)
	if err != nil {
		return err
	}
	fs, err := e.factorize(ctx, c, []*mat.Dense{v})
	if err != nil {
		return err
	}
	writeChannelHeader(w, padding, len(fs))
	return writeFactors(w, fs, matrix.Float64)
}

// encodeRaw splits the channel into consecutive rawRows x rawCols matrices
// of samples.
func (e *Encoder) encodeRaw(ctx context.Context, w io.Writer, c int, s []float64) error {
	size := e.rawRows * e.rawCols
	padded, padding := transform.Pad(s, size)
	chunks := make([]*mat.Dense, len(padded)/size)
	for i := range chunks {
		var err error
		chunks[i], err = matrix.Reshape(padded[i*size:(i+1)*size], e.rawRows, e.rawCols)
		if err != nil {
			return err
		}
	}
	fs, err := e.factorize(ctx, c, chunks)
	if err != nil {
		return err
	}
	writeChannelHeader(w, padding, len(fs))
	return writeFactors(w, fs, matrix.Float32)
}

// encodeMDCT factorises the MDCT coefficient matrix of the channel in
// chunks of rows.
func (e *Encoder) encodeMDCT(ctx context.Context, w io.Writer, c int, s []float64) error {
	m, padding, err := transform.MDCT{BlockSize: e.blockSize / 2}.Forward(s)
	if err != nil {
		return err
	}
	chunks, err := matrix.SplitRows(m, e.chunkSize)
	if err != nil {
		return err
	}
	fs, err := e.factorize(ctx, c, chunks)
	if err != nil {
		return err
	}
	writeChannelHeader(w, padding, len(fs))
	return writeFactors(w, fs, matrix.Float32)
}

// encodeSTFT factorises the STFT magnitudes of the channel in chunks of
// rows. Phases are quantised and entropy coded once per channel. Each
// chunk's factors are scaled to [0, 1] by their joint range and companded;
// W is stored as uint32 and H is quantised and entropy coded.
func (e *Encoder) encodeSTFT(ctx context.Context, w io.Writer, c int, s []float64) error {
	spec, padding, err := transform.STFT{FrameSize: e.blockSize}.Forward(s)
	if err != nil {
		return err
	}
	mag, phase, err := transform.Polar(spec)
	if err != nil {
		return err
	}

	pq, err := quant.NewUniform(-math.Pi, math.Pi, e.phase.Levels())
	if err != nil {
		return err
	}
	pb, err := e.phase.EncodeGrid(pq.QuantizeMatrix(phase))
	if err != nil {
		return errors.Wrap(err, "could not encode phase")
	}

	chunks, err := matrix.SplitRows(mag, e.chunkSize)
	if err != nil {
		return err
	}
	fs, err := e.factorize(ctx, c, chunks)
	if err != nil {
		return err
	}

	hq, err := quant.NewUniform(0, 1, e.coef.Levels())
	if err != nil {
		return err
	}
	writeChannelHeader(w, padding, len(fs))
	_, err = pb.WriteTo(w)
	if err != nil {
		return err
	}
	for i, f := range fs {
		lo, hi := bounds(f.W, f.H)
		writeFloat64(w, f.shift)
		writeFloat64(w, lo)
		writeFloat64(w, hi)

		sw, err := quant.ScaleMatrix(f.W, lo, hi, 0, 1)
		if err != nil {
			return err
		}
		sw, err = quant.ScaleMatrix(quant.CompandMatrix(sw, e.muW), 0, 1, 0, math.MaxUint32)
		if err != nil {
			return err
		}
		err = matrix.Write(w, sw, matrix.Uint32)
		if err != nil {
			return errors.Wrapf(err, "could not write W of chunk %d", i)
		}

		sh, err := quant.ScaleMatrix(f.H, lo, hi, 0, 1)
		if err != nil {
			return err
		}
		hb, err := e.coef.EncodeGrid(hq.QuantizeMatrix(quant.CompandMatrix(sh, e.muH)))
		if err != nil {
			return errors.Wrapf(err, "could not encode H of chunk %d", i)
		}
		_, err = hb.WriteTo(w)
		if err != nil {
			return err
		}
	}
	return nil
}

// factor is the factorisation of one shifted chunk.
type factor struct {
	shift float64
	*nmf.Result
}

// factorize shifts and factorises each chunk, dispatching up to e.workers
// chunks at once. Results are returned in chunk order.
func (e *Encoder) factorize(ctx context.Context, c int, chunks []*mat.Dense) ([]factor, error) {
	fs := make([]factor, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			err := gctx.Err()
			if err != nil {
				return err
			}
			f, err := e.factorizeChunk(chunk, e.chunkSeed(c, i))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			rows, cols := chunk.Dims()
			_, k := f.W.Dims()
			e.log.Debug("factorised chunk", "channel", c, "chunk", i, "rows", rows, "cols", cols, "rank", k, "iterations", f.Iterations)
			fs[i] = f
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func (e *Encoder) factorizeChunk(chunk *mat.Dense, seed int64) (factor, error) {
	v, shift := matrix.Shift(chunk)
	rows, cols := v.Dims()
	k := nmf.FitRank(e.rank, rows, cols)
	var (
		res *nmf.Result
		err error
	)
	if k < 1 {
		res, err = nmf.Degenerate(v)
	} else {
		res, err = nmf.Factorize(v, k, e.maxIter, nmf.WithSeed(seed), nmf.WithTolerance(e.tol))
	}
	if err != nil {
		return factor{}, err
	}
	res.Balance()
	return factor{shift: shift, Result: res}, nil
}

// chunkSeed derives the NMF seed of a chunk from the base seed and the
// chunk's position, so output is independent of scheduling.
func (e *Encoder) chunkSeed(c, i int) int64 {
	return e.seed + int64(c)<<32 + int64(i)
}

// bounds returns the joint range of the elements of ms, widened to unit
// width if empty.
func bounds(ms ...mat.Matrix) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, m := range ms {
		lo = math.Min(lo, mat.Min(m))
		hi = math.Max(hi, mat.Max(m))
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

func writeFactors(w io.Writer, fs []factor, k matrix.Kind) error {
	for i, f := range fs {
		writeFloat64(w, f.shift)
		err := matrix.Write(w, f.W, k)
		if err != nil {
			return errors.Wrapf(err, "could not write W of chunk %d", i)
		}
		err = matrix.Write(w, f.H, k)
		if err != nil {
			return errors.Wrapf(err, "could not write H of chunk %d", i)
		}
	}
	return nil
}

// The write helpers below are only used with in-memory buffers, whose
// writes do not fail.

func writeChannelHeader(w io.Writer, padding, chunks int) {
	writeUint32(w, uint32(padding))
	writeUint32(w, uint32(chunks))
}

func writeUint16(w io.Writer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func writeUint32(w io.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeFloat64(w io.Writer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.Write(b[:])
}
