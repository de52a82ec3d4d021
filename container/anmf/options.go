/*
NAME
  options.go

DESCRIPTION
  options.go provides option functions that can be provided to the ANMF
  encoder's constructor NewEncoder for encoder configuration. These options
  include the variant, transform block size, chunking and factorisation
  parameters.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package anmf

import (
	"errors"
	"fmt"

	"github.com/ausocean/audionmf/codec/entropy"
)

var (
	ErrInvalidBlockSize = errors.New("invalid block size")
	ErrInvalidChunkSize = errors.New("invalid chunk size")
	ErrInvalidRank      = errors.New("invalid rank")
	ErrInvalidMaxIter   = errors.New("invalid maximum iterations")
	ErrInvalidWorkers   = errors.New("invalid worker count")
	ErrInvalidMu        = errors.New("invalid mu-law parameter")
	ErrInvalidTolerance = errors.New("invalid tolerance")
)

// Defaults.
const (
	defaultVariant   = STFT
	defaultBlockSize = 1152
	defaultChunkSize = 500
	defaultRank      = 40
	defaultMaxIter   = 1000
	defaultSeed      = 1
	defaultWorkers   = 1
	defaultRawRows   = 1000
	defaultRawCols   = 150
	defaultMuW       = 1e4
	defaultMuH       = 1e5
	defaultMaxElems  = 1 << 26
)

// WithVariant is an option that can be passed to NewEncoder to select the
// container variant. The default is STFT.
func WithVariant(v Variant) func(*Encoder) error {
	return func(e *Encoder) error {
		if v.Tag() == nil {
			return fmt.Errorf("%w: %d", ErrUnknownVariant, v)
		}
		e.variant = v
		e.log.Debug("configured variant", "variant", v)
		return nil
	}
}

// WithBlockSize sets the analysis window length in samples. The STFT uses
// frames of n samples and the MDCT blocks of n samples yielding n/2
// coefficients, so n must be a positive multiple of 4.
func WithBlockSize(n int) func(*Encoder) error {
	return func(e *Encoder) error {
		if n <= 0 || n%4 != 0 {
			return fmt.Errorf("%w: %d", ErrInvalidBlockSize, n)
		}
		e.blockSize = n
		e.log.Debug("configured block size", "size", n)
		return nil
	}
}

// WithChunkSize sets the maximum number of transform rows factorised
// together.
func WithChunkSize(n int) func(*Encoder) error {
	return func(e *Encoder) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidChunkSize, n)
		}
		e.chunkSize = n
		e.log.Debug("configured chunk size", "rows", n)
		return nil
	}
}

// WithRank sets the factorisation rank. Chunks too small for the rank are
// factorised at the largest rank they allow.
func WithRank(rank int) func(*Encoder) error {
	return func(e *Encoder) error {
		if rank <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidRank, rank)
		}
		e.rank = rank
		e.log.Debug("configured rank", "rank", rank)
		return nil
	}
}

// WithMaxIter sets the maximum number of NMF update iterations per chunk.
func WithMaxIter(n int) func(*Encoder) error {
	return func(e *Encoder) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidMaxIter, n)
		}
		e.maxIter = n
		e.log.Debug("configured max iterations", "iterations", n)
		return nil
	}
}

// WithTolerance sets the relative cost improvement below which NMF stops
// iterating. Zero, the default, stops only once the cost is unchanged.
func WithTolerance(tol float64) func(*Encoder) error {
	return func(e *Encoder) error {
		if tol < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidTolerance, tol)
		}
		e.tol = tol
		e.log.Debug("configured tolerance", "tolerance", tol)
		return nil
	}
}

// WithSeed sets the base seed from which each chunk's NMF initialisation is
// seeded.
func WithSeed(seed int64) func(*Encoder) error {
	return func(e *Encoder) error {
		e.seed = seed
		e.log.Debug("configured seed", "seed", seed)
		return nil
	}
}

// WithWorkers sets the number of chunks factorised concurrently. Output does
// not depend on the worker count.
func WithWorkers(n int) func(*Encoder) error {
	return func(e *Encoder) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidWorkers, n)
		}
		e.workers = n
		e.log.Debug("configured workers", "workers", n)
		return nil
	}
}

// WithRawShape sets the shape of the time domain chunks of the Raw variant.
func WithRawShape(rows, cols int) func(*Encoder) error {
	return func(e *Encoder) error {
		if rows <= 0 || cols <= 0 {
			return fmt.Errorf("%w: %dx%d", ErrInvalidChunkSize, rows, cols)
		}
		e.rawRows, e.rawCols = rows, cols
		e.log.Debug("configured raw chunk shape", "rows", rows, "cols", cols)
		return nil
	}
}

// WithMu sets the mu-law parameters used to compand the STFT variant's W
// and H factors.
func WithMu(muW, muH float64) func(*Encoder) error {
	return func(e *Encoder) error {
		if muW <= 0 || muH <= 0 {
			return fmt.Errorf("%w: W %v, H %v", ErrInvalidMu, muW, muH)
		}
		e.muW, e.muH = muW, muH
		e.log.Debug("configured mu-law", "muW", muW, "muH", muH)
		return nil
	}
}

// WithProfiles sets the entropy coding profiles used by the STFT variant.
// They must include entropy.Coefficients and entropy.Phase.
func WithProfiles(p *entropy.Profiles) func(*Encoder) error {
	return func(e *Encoder) error {
		if p == nil {
			return errors.New("nil profiles")
		}
		e.profiles = p
		return nil
	}
}
