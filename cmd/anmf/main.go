/*
DESCRIPTION
  anmf is a command line tool for compressing audio files into ANMF
  containers, decompressing them, and comparing decompressed audio against
  its source.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main provides the anmf command.
//
// Usage:
//
//	anmf compress [flags] <in.wav|in.flac|in.pcm> <out.anmf>
//	anmf decompress [flags] <in.anmf> <out.wav|out.flac|out.pcm>
//	anmf compare [flags] <reference> <decoded>
//
// Compression parameters are read from an optional JSON file of string
// values given by -config and then from any number of -set Key=Value flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/audionmf/codec/flac"
	"github.com/ausocean/audionmf/codec/pcm"
	"github.com/ausocean/audionmf/codec/wav"
	"github.com/ausocean/audionmf/config"
	"github.com/ausocean/audionmf/container/anmf"
)

// Logging configuration.
const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = false
)

// File extensions.
const (
	extANMF = ".anmf"
	extWAV  = ".wav"
	extFLAC = ".flac"
	extPCM  = ".pcm"
	extRaw  = ".raw"
)

var errUnsupportedType = errors.New("unsupported file type")

// vars collects repeated -set Key=Value flags.
type vars map[string]string

func (v vars) String() string {
	var s []string
	for k, val := range v {
		s = append(s, k+"="+val)
	}
	return strings.Join(s, ",")
}

func (v vars) Set(s string) error {
	k, val, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected Key=Value, got %q", s)
	}
	v[k] = val
	return nil
}

// rawFormat describes headerless PCM input and output.
type rawFormat struct {
	rate     uint
	channels uint
	format   string
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "", "JSON file of configuration variables")
	logPath := fs.String("log", filepath.Join(os.TempDir(), "anmf.log"), "log file path")
	set := vars{}
	fs.Var(set, "set", "configuration variable as Key=Value (repeatable)")
	var raw rawFormat
	fs.UintVar(&raw.rate, "rate", 44100, "sample rate of raw PCM files")
	fs.UintVar(&raw.channels, "channels", 1, "channel count of raw PCM files")
	fs.StringVar(&raw.format, "format", pcm.S16_LE.String(), "sample format of raw PCM files")
	fs.Parse(args)

	// Create lumberjack logger to handle logging to file.
	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}

	// Create logger that we call methods on to log, which in turn writes to
	// stderr and the lumberjack logger.
	log := logging.New(logVerbosity, io.MultiWriter(os.Stderr, fileLog), logSuppress)

	cfg, err := loadConfig(log, *cfgPath, set)
	if err != nil {
		log.Fatal("could not load config", "error", err.Error())
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if fs.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	in, out := fs.Arg(0), fs.Arg(1)

	switch cmd {
	case "compress":
		err = compress(ctx, log, cfg, raw, in, out)
	case "decompress":
		err = decompress(ctx, log, cfg, raw, in, out)
	case "compare":
		err = compare(ctx, log, cfg, raw, in, out)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(cmd+" failed", "error", err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: anmf compress|decompress|compare [flags] <in> <out>")
}

// loadConfig builds a validated config from an optional JSON file and the
// given overriding variables.
func loadConfig(log logging.Logger, path string, set vars) (*config.Config, error) {
	cfg := &config.Config{Logger: log}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		fileVars := map[string]string{}
		err = json.Unmarshal(b, &fileVars)
		if err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", path, err)
		}
		cfg.Update(fileVars)
	}
	cfg.Update(set)
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	log.Debug("loaded config", "config", *cfg)
	return cfg, nil
}

func compress(ctx context.Context, log logging.Logger, cfg *config.Config, raw rawFormat, in, out string) error {
	a, err := readAsset(ctx, log, cfg, raw, in)
	if err != nil {
		return err
	}
	if cfg.Downmix {
		a, err = pcm.Downmix(a)
		if err != nil {
			return err
		}
		log.Info("downmixed input")
	}
	if cfg.SampleRate != 0 && cfg.SampleRate != a.Rate {
		from := a.Rate
		a, err = pcm.Resample(a, cfg.SampleRate)
		if err != nil {
			return err
		}
		log.Info("resampled input", "from", from, "to", a.Rate)
	}

	opts, err := cfg.EncoderOptions()
	if err != nil {
		return err
	}
	enc, err := anmf.NewEncoder(log, opts...)
	if err != nil {
		return fmt.Errorf("could not create encoder: %w", err)
	}
	return writeFile(out, func(f *os.File) error { return enc.Encode(ctx, f, a) })
}

func decompress(ctx context.Context, log logging.Logger, cfg *config.Config, raw rawFormat, in, out string) error {
	a, err := readAsset(ctx, log, cfg, raw, in)
	if err != nil {
		return err
	}
	switch ext(out) {
	case extWAV:
		return writeFile(out, func(f *os.File) error { return wav.Write(f, a) })
	case extFLAC:
		return writeFile(out, func(f *os.File) error { return flac.Write(f, a) })
	case extPCM, extRaw:
		b, err := a.Buffer()
		if err != nil {
			return err
		}
		return writeFile(out, func(f *os.File) error {
			_, err := f.Write(b.Data)
			return err
		})
	}
	return fmt.Errorf("%w: %s", errUnsupportedType, out)
}

func compare(ctx context.Context, log logging.Logger, cfg *config.Config, raw rawFormat, ref, got string) error {
	r, err := readAsset(ctx, log, cfg, raw, ref)
	if err != nil {
		return err
	}
	g, err := readAsset(ctx, log, cfg, raw, got)
	if err != nil {
		return err
	}
	if r.Len() != g.Len() {
		log.Warning("sample counts differ, comparing common prefix", "reference", r.Len(), "decoded", g.Len())
	}
	qs, err := pcm.Compare(r, g)
	if err != nil {
		return err
	}
	for c, q := range qs {
		fmt.Printf("channel %d: SNR %.2f dB, RMSE %.2f, bias %.2f, max error %.0f\n", c, q.SNR, q.RMSE, q.Bias, q.MaxError)
	}
	return nil
}

// readAsset loads the audio in path, choosing the decoder by extension.
func readAsset(ctx context.Context, log logging.Logger, cfg *config.Config, raw rawFormat, path string) (pcm.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return pcm.Asset{}, err
	}
	defer f.Close()

	var a pcm.Asset
	switch ext(path) {
	case extWAV:
		a, err = wav.Read(f)
	case extFLAC:
		a, err = flac.Read(f)
	case extANMF:
		var dec *anmf.Decoder
		dec, err = anmf.NewDecoder(log, cfg.DecoderOptions()...)
		if err == nil {
			a, err = dec.Decode(ctx, f)
		}
	case extPCM, extRaw:
		a, err = readRaw(f, raw)
	default:
		return pcm.Asset{}, fmt.Errorf("%w: %s", errUnsupportedType, path)
	}
	if err != nil {
		return pcm.Asset{}, fmt.Errorf("could not read %s: %w", path, err)
	}
	log.Info("read audio", "path", path, "channels", len(a.Channels), "samples", a.Len(), "rate", a.Rate)
	return a, nil
}

func readRaw(r io.Reader, raw rawFormat) (pcm.Asset, error) {
	sf, err := pcm.SFFromString(raw.format)
	if err != nil {
		return pcm.Asset{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return pcm.Asset{}, err
	}
	return pcm.FromBuffer(pcm.Buffer{
		Format: pcm.BufferFormat{SFormat: sf, Rate: raw.rate, Channels: raw.channels},
		Data:   b,
	})
}

// writeFile writes to a temporary file beside path with write, then renames
// it to path. The temporary file is removed if any step fails.
func writeFile(path string, write func(*os.File) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	err = write(f)
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
