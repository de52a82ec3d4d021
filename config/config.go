/*
DESCRIPTION
  config.go provides the Config struct holding the compression parameters of
  the anmf tools, and methods to update and validate it.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for ANMF compression.
package config

import (
	"github.com/ausocean/utils/logging"

	"github.com/ausocean/audionmf/container/anmf"
)

// Config provides parameters relevant to compressing and decompressing
// audio. A new config must be validated before use; Validate replaces unset
// or invalid fields with defaults.
type Config struct {
	// Logger holds an implementation of the Logger interface.
	// This must be set for the config to work correctly.
	Logger logging.Logger

	// LogLevel is the logging verbosity level.
	// Valid values are defined by enums from the logging package: logging.Debug,
	// logging.Info, logging.Warning logging.Error, logging.Fatal.
	LogLevel int8

	// Variant names the container variant: square, raw, mdct or stft.
	Variant string

	// BlockSize is the STFT frame length in samples. MDCT blocks of BlockSize
	// samples yield BlockSize/2 coefficients. It must be a multiple of 4.
	BlockSize uint

	ChunkSize uint    // Transform rows factorised together.
	Rank      uint    // NMF rank; clamped per chunk to what the chunk allows.
	MaxIter   uint    // Maximum NMF iterations per chunk.
	Tolerance float64 // Relative cost improvement at which NMF stops; 0 stops on no change.

	// Seed is the base seed of the NMF initialisation. Zero is treated as
	// unset.
	Seed int64

	Workers uint // Chunks factorised concurrently.

	// RawRows and RawCols give the shape of the time domain chunks of the raw
	// variant.
	RawRows uint
	RawCols uint

	// MuW and MuH are the mu-law parameters companding the STFT variant's W
	// and H factors. The same values must be used to decompress.
	MuW float64
	MuH float64

	Downmix    bool // Downmix averages all channels into one before compression.
	SampleRate uint // SampleRate is the resampling target in Hz; 0 keeps the source rate.
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}

// EncoderOptions returns the anmf encoder options described by c.
func (c *Config) EncoderOptions() ([]func(*anmf.Encoder) error, error) {
	v, err := anmf.ParseVariant(c.Variant)
	if err != nil {
		return nil, err
	}
	return []func(*anmf.Encoder) error{
		anmf.WithVariant(v),
		anmf.WithBlockSize(int(c.BlockSize)),
		anmf.WithChunkSize(int(c.ChunkSize)),
		anmf.WithRank(int(c.Rank)),
		anmf.WithMaxIter(int(c.MaxIter)),
		anmf.WithTolerance(c.Tolerance),
		anmf.WithSeed(c.Seed),
		anmf.WithWorkers(int(c.Workers)),
		anmf.WithRawShape(int(c.RawRows), int(c.RawCols)),
		anmf.WithMu(c.MuW, c.MuH),
	}, nil
}

// DecoderOptions returns the anmf decoder options described by c.
func (c *Config) DecoderOptions() []func(*anmf.Decoder) error {
	return []func(*anmf.Decoder) error{anmf.DecodeMu(c.MuW, c.MuH)}
}
