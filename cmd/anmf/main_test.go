/*
DESCRIPTION
  main_test.go provides testing for the anmf command's file handling.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/audionmf/codec/flac"
	"github.com/ausocean/audionmf/codec/pcm"
	"github.com/ausocean/audionmf/codec/wav"
	"github.com/ausocean/audionmf/config"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestVars(t *testing.T) {
	v := vars{}
	for _, s := range []string{"Rank=10", "Variant=mdct", "Rank=12"} {
		err := v.Set(s)
		if err != nil {
			t.Fatalf("could not set %q: %v", s, err)
		}
	}
	want := vars{"Rank": "12", "Variant": "mdct"}
	if !cmp.Equal(v, want) {
		t.Errorf("unexpected vars\n%s", cmp.Diff(want, v))
	}
	for _, s := range []string{"Rank", "=3"} {
		if v.Set(s) == nil {
			t.Errorf("expected error setting %q", s)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	err := os.WriteFile(path, []byte(`{"Variant": "raw", "Rank": "5", "Workers": "2"}`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(&dumbLogger{}, path, vars{"Rank": "7"})
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if cfg.Variant != "raw" || cfg.Rank != 7 || cfg.Workers != 2 {
		t.Errorf("unexpected config: variant %s, rank %d, workers %d", cfg.Variant, cfg.Rank, cfg.Workers)
	}

	_, err = loadConfig(&dumbLogger{}, filepath.Join(dir, "missing.json"), vars{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("did not get expected error for missing file: %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.anmf")

	errWrite := errors.New("write failed")
	err := writeFile(path, func(f *os.File) error {
		f.Write([]byte("partial"))
		return errWrite
	})
	if !errors.Is(err, errWrite) {
		t.Fatalf("did not get expected error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed write left %d files behind", len(entries))
	}

	err = writeFile(path, func(f *os.File) error {
		_, err := f.Write([]byte("ANMFS"))
		return err
	})
	if err != nil {
		t.Fatalf("could not write file: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("ANMFS")) {
		t.Errorf("unexpected file contents %q", got)
	}
}

func TestCompressDecompress(t *testing.T) {
	dir := t.TempDir()
	log := &dumbLogger{}

	n := 512
	ch := make([]float64, n)
	for i := range ch {
		ch[i] = float64(i%64-32) * 100
	}
	a := pcm.Asset{Rate: 8000, Channels: []pcm.Channel{pcm.ChannelFromFloats(ch), pcm.ChannelFromFloats(ch)}}
	b, err := a.Buffer()
	if err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "in.pcm")
	err = os.WriteFile(in, b.Data, 0644)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{Logger: log}
	cfg.Update(map[string]string{"Variant": "mdct", "BlockSize": "64", "ChunkSize": "8", "Rank": "4", "MaxIter": "50", "Downmix": "true"})
	err = cfg.Validate()
	if err != nil {
		t.Fatal(err)
	}
	raw := rawFormat{rate: 8000, channels: 2, format: "S16_LE"}

	ctx := context.Background()
	packed := filepath.Join(dir, "out.anmf")
	err = compress(ctx, log, cfg, raw, in, packed)
	if err != nil {
		t.Fatalf("could not compress: %v", err)
	}
	out := filepath.Join(dir, "out.wav")
	err = decompress(ctx, log, cfg, raw, packed, out)
	if err != nil {
		t.Fatalf("could not decompress: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := wav.Read(f)
	if err != nil {
		t.Fatalf("could not read decompressed wav: %v", err)
	}
	if len(got.Channels) != 1 || got.Len() != n || got.Rate != 8000 {
		t.Errorf("unexpected output: %d channels of %d samples at %d Hz", len(got.Channels), got.Len(), got.Rate)
	}

	// The FLAC output must hold the same samples as the WAV output.
	lossless := filepath.Join(dir, "out.flac")
	err = decompress(ctx, log, cfg, raw, packed, lossless)
	if err != nil {
		t.Fatalf("could not decompress to flac: %v", err)
	}
	fl, err := os.Open(lossless)
	if err != nil {
		t.Fatal(err)
	}
	defer fl.Close()
	gotFLAC, err := flac.Read(fl)
	if err != nil {
		t.Fatalf("could not read decompressed flac: %v", err)
	}
	if !cmp.Equal(gotFLAC, got) {
		t.Errorf("flac output differs from wav output\n%v", cmp.Diff(got, gotFLAC))
	}

	err = decompress(ctx, log, cfg, raw, packed, filepath.Join(dir, "out.mp3"))
	if !errors.Is(err, errUnsupportedType) {
		t.Errorf("did not get expected error for unsupported output: %v", err)
	}
}
