/*
NAME
  quality.go

DESCRIPTION
  quality.go provides objective measures of how closely decoded audio
  matches a reference.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pcm

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Quality holds error measures of one channel against its reference.
type Quality struct {
	// SNR is the signal to noise ratio in dB. It is +Inf for an exact match.
	SNR float64

	// RMSE is the root mean square sample error.
	RMSE float64

	// Bias is the mean sample error.
	Bias float64

	// MaxError is the largest absolute sample error.
	MaxError float64
}

// Compare measures each channel of got against the same channel of ref.
// Channels are compared over the shorter of the two lengths.
func Compare(ref, got Asset) ([]Quality, error) {
	if len(ref.Channels) != len(got.Channels) {
		return nil, errors.Errorf("channel count mismatch: reference has %d, got %d", len(ref.Channels), len(got.Channels))
	}
	q := make([]Quality, len(ref.Channels))
	for c := range ref.Channels {
		n := min(len(ref.Channels[c]), len(got.Channels[c]))
		if n == 0 {
			return nil, errors.Errorf("channel %d is empty", c)
		}
		r := ref.Channels[c][:n].Floats()
		g := got.Channels[c][:n].Floats()

		diff := make([]float64, n)
		floats.SubTo(diff, g, r)
		noise := floats.Norm(diff, 2)
		q[c] = Quality{
			SNR:      snr(floats.Norm(r, 2), noise),
			RMSE:     noise / math.Sqrt(float64(n)),
			Bias:     stat.Mean(diff, nil),
			MaxError: math.Max(floats.Max(diff), -floats.Min(diff)),
		}
	}
	return q, nil
}

func snr(signal, noise float64) float64 {
	if noise == 0 {
		return math.Inf(1)
	}
	return 20 * math.Log10(signal/noise)
}
