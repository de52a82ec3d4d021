/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/sliceutils"

	"github.com/ausocean/audionmf/container/anmf"
)

// Config map Keys.
const (
	KeyBlockSize  = "BlockSize"
	KeyChunkSize  = "ChunkSize"
	KeyDownmix    = "Downmix"
	KeyLogging    = "logging"
	KeyMaxIter    = "MaxIter"
	KeyMuH        = "MuH"
	KeyMuW        = "MuW"
	KeyRank       = "Rank"
	KeyRawCols    = "RawCols"
	KeyRawRows    = "RawRows"
	KeySampleRate = "SampleRate"
	KeySeed       = "Seed"
	KeyTolerance  = "Tolerance"
	KeyVariant    = "Variant"
	KeyWorkers    = "Workers"
)

// Config map parameter types.
const (
	typeInt   = "int"
	typeUint  = "uint"
	typeBool  = "bool"
	typeFloat = "float"
)

// Default variable values.
const (
	defaultVerbosity = logging.Info
	defaultVariant   = "stft"
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
)

// Variables describes the variables that can be used for compression control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyBlockSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.BlockSize = parseUint(KeyBlockSize, v, c) },
		Validate: func(c *Config) {
			if c.BlockSize == 0 || c.BlockSize%4 != 0 {
				c.LogInvalidField(KeyBlockSize, defaultBlockSize)
				c.BlockSize = defaultBlockSize
			}
		},
	},
	{
		Name:   KeyChunkSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.ChunkSize = parseUint(KeyChunkSize, v, c) },
		Validate: func(c *Config) {
			c.ChunkSize = lessThanOrEqual(KeyChunkSize, c.ChunkSize, 0, c, defaultChunkSize)
		},
	},
	{
		Name:   KeyDownmix,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Downmix = parseBool(KeyDownmix, v, c) },
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyMaxIter,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.MaxIter = parseUint(KeyMaxIter, v, c) },
		Validate: func(c *Config) {
			c.MaxIter = lessThanOrEqual(KeyMaxIter, c.MaxIter, 0, c, defaultMaxIter)
		},
	},
	{
		Name:   KeyMuH,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.MuH = parseFloat(KeyMuH, v, c) },
		Validate: func(c *Config) {
			c.MuH = positiveFloat(KeyMuH, c.MuH, c, defaultMuH)
		},
	},
	{
		Name:   KeyMuW,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.MuW = parseFloat(KeyMuW, v, c) },
		Validate: func(c *Config) {
			c.MuW = positiveFloat(KeyMuW, c.MuW, c, defaultMuW)
		},
	},
	{
		Name:   KeyRank,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Rank = parseUint(KeyRank, v, c) },
		Validate: func(c *Config) {
			c.Rank = lessThanOrEqual(KeyRank, c.Rank, 0, c, defaultRank)
		},
	},
	{
		Name:   KeyRawCols,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.RawCols = parseUint(KeyRawCols, v, c) },
		Validate: func(c *Config) {
			c.RawCols = lessThanOrEqual(KeyRawCols, c.RawCols, 0, c, defaultRawCols)
		},
	},
	{
		Name:   KeyRawRows,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.RawRows = parseUint(KeyRawRows, v, c) },
		Validate: func(c *Config) {
			c.RawRows = lessThanOrEqual(KeyRawRows, c.RawRows, 0, c, defaultRawRows)
		},
	},
	{
		Name:   KeySampleRate,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.SampleRate = parseUint(KeySampleRate, v, c) },
	},
	{
		Name: KeySeed,
		Type: typeInt,
		Update: func(c *Config, v string) {
			_v, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				c.Logger.Warning(fmt.Sprintf("expected integer for param %s", KeySeed), "value", v)
			}
			c.Seed = _v
		},
		Validate: func(c *Config) {
			if c.Seed == 0 {
				c.LogInvalidField(KeySeed, defaultSeed)
				c.Seed = defaultSeed
			}
		},
	},
	{
		Name:   KeyTolerance,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.Tolerance = parseFloat(KeyTolerance, v, c) },
		Validate: func(c *Config) {
			if c.Tolerance < 0 {
				c.LogInvalidField(KeyTolerance, 0)
				c.Tolerance = 0
			}
		},
	},
	{
		Name:   KeyVariant,
		Type:   "enum:" + strings.Join(anmf.Variants(), ","),
		Update: func(c *Config, v string) { c.Variant = strings.ToLower(v) },
		Validate: func(c *Config) {
			if !sliceutils.ContainsString(anmf.Variants(), c.Variant) {
				c.LogInvalidField(KeyVariant, defaultVariant)
				c.Variant = defaultVariant
			}
		},
	},
	{
		Name:   KeyWorkers,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Workers = parseUint(KeyWorkers, v, c) },
		Validate: func(c *Config) {
			c.Workers = lessThanOrEqual(KeyWorkers, c.Workers, 0, c, defaultWorkers)
		},
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseFloat(n, v string, c *Config) float64 {
	_v, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("invalid %s param", n), "value", v)
	}
	return _v
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}

func positiveFloat(n string, v float64, c *Config, def float64) float64 {
	if !(v > 0) {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}
