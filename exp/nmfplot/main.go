/*
NAME
  main.go

DESCRIPTION
  nmfplot factorises the first transform chunk of a WAV file at a number of
  ranks and plots the NMF cost of each iteration.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package nmfplot is a command-line program for plotting NMF convergence.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ausocean/audionmf/codec/matrix"
	"github.com/ausocean/audionmf/codec/nmf"
	"github.com/ausocean/audionmf/codec/transform"
	"github.com/ausocean/audionmf/codec/wav"
)

func main() {
	inPath := flag.String("in", "audio.wav", "file path of input WAV")
	outPath := flag.String("out", "cost.png", "file path of output plot; the extension selects the image format")
	variant := flag.String("variant", "stft", "transform to factorise: mdct or stft")
	block := flag.Int("block", 1152, "transform block size in samples")
	chunk := flag.Int("chunk", 500, "rows in the factorised chunk")
	ranks := flag.String("ranks", "10,20,40", "comma separated ranks to plot")
	iter := flag.Int("iter", 200, "NMF iterations")
	flag.Parse()

	f, err := os.Open(*inPath)
	if err != nil {
		log.Fatal(err)
	}
	a, err := wav.Read(f)
	f.Close()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Read", a.Len(), "samples from file", *inPath)

	v, err := firstChunk(a.Channels[0].Floats(), *variant, *block, *chunk)
	if err != nil {
		log.Fatal(err)
	}
	rows, cols := v.Dims()
	fmt.Printf("Factorising %dx%d %s chunk\n", rows, cols, *variant)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("NMF cost, %s %dx%d", *variant, rows, cols)
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "Frobenius error"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{}

	var lines []interface{}
	for _, s := range strings.Split(*ranks, ",") {
		k, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			log.Fatalf("invalid rank %q: %v", s, err)
		}
		k = nmf.FitRank(k, rows, cols)
		if k < 1 {
			log.Fatalf("chunk too small to factorise")
		}
		res, err := nmf.Factorize(v, k, *iter)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("rank %d: %d iterations, final cost %g\n", k, res.Iterations, res.Costs[len(res.Costs)-1])
		lines = append(lines, fmt.Sprintf("rank %d", k), costs(res.Costs))
	}
	err = plotutil.AddLines(p, lines...)
	if err != nil {
		log.Fatal(err)
	}

	err = p.Save(8*vg.Inch, 5*vg.Inch, *outPath)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Wrote plot to file", *outPath)
}

// firstChunk returns the first chunk rows of the shifted transform of s.
func firstChunk(s []float64, variant string, block, chunk int) (*mat.Dense, error) {
	var m *mat.Dense
	switch variant {
	case "mdct":
		var err error
		m, _, err = transform.MDCT{BlockSize: block / 2}.Forward(s)
		if err != nil {
			return nil, err
		}
	case "stft":
		spec, _, err := transform.STFT{FrameSize: block}.Forward(s)
		if err != nil {
			return nil, err
		}
		m, _, err = transform.Polar(spec)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
	chunks, err := matrix.SplitRows(m, chunk)
	if err != nil {
		return nil, err
	}
	v, _ := matrix.Shift(chunks[0])
	return v, nil
}

// costs returns the cost history as plot points. Zero costs are raised to
// the smallest positive cost so they remain on the log scale.
func costs(c []float64) plotter.XYs {
	floor := 0.0
	for _, v := range c {
		if v > 0 && (floor == 0 || v < floor) {
			floor = v
		}
	}
	if floor == 0 {
		floor = 1
	}
	pts := make(plotter.XYs, len(c))
	for i, v := range c {
		pts[i].X = float64(i + 1)
		pts[i].Y = max(v, floor)
	}
	return pts
}
