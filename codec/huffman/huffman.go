/*
NAME
  huffman.go

DESCRIPTION
  huffman.go provides a static Huffman code built from a symbol frequency
  table, with an end of stream symbol so that padded byte streams decode to
  exactly the symbols encoded.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package huffman encodes integer symbol streams with a static prefix code.
package huffman

import (
	"bytes"
	"container/heap"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/icza/bitio"
)

var (
	ErrUnknownSymbol = errors.New("symbol not in code table")
	ErrNoEOS         = errors.New("stream ended before end of stream symbol")
	ErrEmptyTable    = errors.New("empty frequency table")
	ErrCodeTooLong   = errors.New("code word longer than 64 bits")
)

// eos is the internal end of stream symbol. Table symbols must be
// non-negative so it cannot collide.
const eos = -1

// codeword is a code of n bits held in the low bits of bits, most
// significant first.
type codeword struct {
	bits uint64
	n    uint8
}

type node struct {
	sym         int
	weight      int
	order       int
	left, right *node
}

func (n *node) leaf() bool { return n.left == nil }

// Code is a static Huffman code. It is safe for concurrent use.
type Code struct {
	root  *node
	words map[int]codeword
}

// New builds a code from a table of symbol frequencies. Symbols must be
// non-negative and frequencies positive. An end of stream symbol of
// frequency one is added. Construction is deterministic: equal weights are
// merged in ascending symbol order, then in order of creation.
func New(freqs map[int]int) (*Code, error) {
	if len(freqs) == 0 {
		return nil, ErrEmptyTable
	}
	syms := make([]int, 0, len(freqs))
	for s, f := range freqs {
		if s < 0 {
			return nil, fmt.Errorf("negative symbol %d", s)
		}
		if f <= 0 {
			return nil, fmt.Errorf("symbol %d has non-positive frequency %d", s, f)
		}
		syms = append(syms, s)
	}
	sort.Ints(syms)

	var q queue
	order := 0
	push := func(n *node) {
		n.order = order
		order++
		heap.Push(&q, n)
	}
	push(&node{sym: eos, weight: 1})
	for _, s := range syms {
		push(&node{sym: s, weight: freqs[s]})
	}
	for q.Len() > 1 {
		a := heap.Pop(&q).(*node)
		b := heap.Pop(&q).(*node)
		push(&node{weight: a.weight + b.weight, left: a, right: b})
	}

	c := &Code{root: heap.Pop(&q).(*node), words: make(map[int]codeword, len(freqs)+1)}
	err := c.assign(c.root, codeword{})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Code) assign(n *node, w codeword) error {
	if n.leaf() {
		c.words[n.sym] = w
		return nil
	}
	if w.n == 64 {
		return ErrCodeTooLong
	}
	err := c.assign(n.left, codeword{bits: w.bits << 1, n: w.n + 1})
	if err != nil {
		return err
	}
	return c.assign(n.right, codeword{bits: w.bits<<1 | 1, n: w.n + 1})
}

// Len returns the code length in bits of sym, or zero if sym is not in the
// table.
func (c *Code) Len(sym int) int {
	return int(c.words[sym].n)
}

// Encode returns the code words of syms followed by the end of stream
// symbol, packed most significant bit first and zero padded to a whole
// byte.
func (c *Code) Encode(syms []int) ([]byte, error) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	for i, s := range syms {
		cw, ok := c.words[s]
		if !ok || s == eos {
			return nil, fmt.Errorf("%w: %d at %d", ErrUnknownSymbol, s, i)
		}
		err := w.WriteBits(cw.bits, cw.n)
		if err != nil {
			return nil, err
		}
	}
	cw := c.words[eos]
	err := w.WriteBits(cw.bits, cw.n)
	if err != nil {
		return nil, err
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode returns the symbols encoded in b up to the end of stream symbol.
// Bits after the end of stream symbol are ignored.
func (c *Code) Decode(b []byte) ([]int, error) {
	r := bitio.NewReader(bytes.NewReader(b))
	var syms []int
	n := c.root
	for {
		bit, err := r.ReadBool()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return syms, ErrNoEOS
		}
		if err != nil {
			return syms, err
		}
		if bit {
			n = n.right
		} else {
			n = n.left
		}
		if !n.leaf() {
			continue
		}
		if n.sym == eos {
			return syms, nil
		}
		syms = append(syms, n.sym)
		n = c.root
	}
}

// queue is a min-heap of nodes ordered by weight then creation order.
type queue []*node

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].weight != q[j].weight {
		return q[i].weight < q[j].weight
	}
	return q[i].order < q[j].order
}
func (q queue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x interface{}) { *q = append(*q, x.(*node)) }
func (q *queue) Pop() interface{} {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}
