/*
NAME
  entropy.go

DESCRIPTION
  entropy.go marshals grids of quantised symbols to and from Huffman coded
  byte blocks using named static frequency tables.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package entropy entropy codes symbol grids with static Huffman tables
// selected by profile name.
package entropy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ausocean/audionmf/codec/huffman"
)

// Names of the default profiles.
const (
	// Coefficients holds the table for 32 level STFT magnitude activations.
	Coefficients = "stft32"

	// Phase holds the table for 8 level STFT phases.
	Phase = "stftp"
)

var (
	ErrUnknownCodingProfile = errors.New("unknown coding profile")
	ErrTruncated            = errors.New("entropy block truncated")
	ErrRaggedGrid           = errors.New("symbol grid rows have unequal length")
	ErrRowCount             = errors.New("symbol count not divisible by row count")
	ErrEmptyRows            = errors.New("symbol grid rows are empty")
)

// Average symbol frequencies measured over a speech and music corpus.
var (
	coefficientFreqs = [32]int{
		13404, 951, 625, 503, 400, 362, 316, 305,
		311, 327, 377, 404, 400, 418, 442, 452,
		434, 417, 396, 375, 322, 281, 246, 200,
		138, 93, 63, 43, 31, 26, 14, 4,
	}
	phaseFreqs = [8]int{25703, 50394, 50421, 50716, 51780, 50437, 50291, 26557}
)

// Profile names a frequency table. Symbols are 0 to len(Freqs)-1.
type Profile struct {
	Name  string
	Freqs []int
}

// Profiles is a read-only set of coding profiles with their codes built.
type Profiles struct {
	codes map[string]*huffman.Code
	sizes map[string]int
}

// DefaultProfiles returns the Coefficients and Phase profiles.
func DefaultProfiles() *Profiles {
	p, err := NewProfiles(
		Profile{Name: Coefficients, Freqs: coefficientFreqs[:]},
		Profile{Name: Phase, Freqs: phaseFreqs[:]},
	)
	if err != nil {
		panic(fmt.Sprintf("invalid default profile: %v", err))
	}
	return p
}

// NewProfiles builds the codes of the given profiles.
func NewProfiles(ps ...Profile) (*Profiles, error) {
	p := &Profiles{codes: make(map[string]*huffman.Code, len(ps)), sizes: make(map[string]int, len(ps))}
	for _, prof := range ps {
		if _, ok := p.codes[prof.Name]; ok {
			return nil, fmt.Errorf("duplicate profile %q", prof.Name)
		}
		freqs := make(map[int]int, len(prof.Freqs))
		for s, f := range prof.Freqs {
			freqs[s] = f
		}
		c, err := huffman.New(freqs)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", prof.Name, err)
		}
		p.codes[prof.Name] = c
		p.sizes[prof.Name] = len(prof.Freqs)
	}
	return p, nil
}

// Names returns the registered profile names in sorted order.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.codes))
	for n := range p.codes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *Profiles) unknown(name string) error {
	return fmt.Errorf("%w: %q, have %s", ErrUnknownCodingProfile, name, strings.Join(p.Names(), ", "))
}

// Levels returns the number of symbols of the named profile.
func (p *Profiles) Levels(name string) (int, error) {
	n, ok := p.sizes[name]
	if !ok {
		return 0, p.unknown(name)
	}
	return n, nil
}

// Block is an entropy coded symbol grid.
type Block struct {
	Rows uint32
	Data []byte
}

// WriteTo writes the row count and byte length as little-endian uint32s
// followed by the coded bytes.
func (b Block) WriteTo(w io.Writer) (int64, error) {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[:4], b.Rows)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(b.Data)))
	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(b.Data)
	return int64(n + m), err
}

// ReadBlock reads a Block written by WriteTo.
func ReadBlock(r io.Reader) (Block, error) {
	var hdr [8]byte
	_, err := io.ReadFull(r, hdr[:])
	if err != nil {
		return Block{}, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}
	b := Block{Rows: binary.LittleEndian.Uint32(hdr[:4])}
	size := binary.LittleEndian.Uint32(hdr[4:])
	b.Data, err = io.ReadAll(io.LimitReader(r, int64(size)))
	if err != nil {
		return Block{}, err
	}
	if len(b.Data) != int(size) {
		return Block{}, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, len(b.Data), size)
	}
	return b, nil
}

// Coder encodes and decodes grids with one profile.
type Coder struct {
	name   string
	levels int
	code   *huffman.Code
}

// NewCoder returns a coder for the named profile.
func NewCoder(p *Profiles, name string) (*Coder, error) {
	c, ok := p.codes[name]
	if !ok {
		return nil, p.unknown(name)
	}
	return &Coder{name: name, levels: p.sizes[name], code: c}, nil
}

// Name returns the profile name.
func (c *Coder) Name() string { return c.name }

// Levels returns the number of symbols the profile codes.
func (c *Coder) Levels() int { return c.levels }

// EncodeGrid codes the symbols of g in row-major order.
func (c *Coder) EncodeGrid(g [][]int) (Block, error) {
	var syms []int
	for i, row := range g {
		if len(row) != len(g[0]) {
			return Block{}, fmt.Errorf("%w: row %d has %d symbols, want %d", ErrRaggedGrid, i, len(row), len(g[0]))
		}
		syms = append(syms, row...)
	}
	if len(g) != 0 && len(syms) == 0 {
		return Block{}, fmt.Errorf("%w: %d rows", ErrEmptyRows, len(g))
	}
	data, err := c.code.Encode(syms)
	if err != nil {
		return Block{}, fmt.Errorf("profile %q: %w", c.name, err)
	}
	return Block{Rows: uint32(len(g)), Data: data}, nil
}

// DecodeGrid restores the grid coded in b.
func (c *Coder) DecodeGrid(b Block) ([][]int, error) {
	syms, err := c.code.Decode(b.Data)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", c.name, err)
	}
	rows := int(b.Rows)
	if rows == 0 {
		if len(syms) != 0 {
			return nil, fmt.Errorf("%w: %d symbols in 0 rows", ErrRowCount, len(syms))
		}
		return [][]int{}, nil
	}
	if rows > len(syms) || len(syms)%rows != 0 {
		return nil, fmt.Errorf("%w: %d symbols in %d rows", ErrRowCount, len(syms), rows)
	}
	cols := len(syms) / rows
	g := make([][]int, rows)
	for i := range g {
		g[i] = syms[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return g, nil
}
