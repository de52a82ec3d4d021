/*
NAME
  utils_test.go

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
	"encoding/binary"
	"math"
	"testing"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/audionmf/codec/pcm"
)

// testLogger will allow logging to be done by the testing pkg.
type testLogger testing.T

func (tl *testLogger) Debug(msg string, args ...interface{})   { tl.Log(logging.Debug, msg, args...) }
func (tl *testLogger) Info(msg string, args ...interface{})    { tl.Log(logging.Info, msg, args...) }
func (tl *testLogger) Warning(msg string, args ...interface{}) { tl.Log(logging.Warning, msg, args...) }
func (tl *testLogger) Error(msg string, args ...interface{})   { tl.Log(logging.Error, msg, args...) }
func (tl *testLogger) Fatal(msg string, args ...interface{})   { tl.Log(logging.Fatal, msg, args...) }
func (tl *testLogger) SetLevel(lvl int8)                       {}
func (dl *testLogger) Log(lvl int8, msg string, args ...interface{}) {
	var l string
	switch lvl {
	case logging.Warning:
		l = "warning"
	case logging.Debug:
		l = "debug"
	case logging.Info:
		l = "info"
	case logging.Error:
		l = "error"
	case logging.Fatal:
		l = "fatal"
	}
	msg = l + ": " + msg

	// Just use test.T.Log if no formatting required.
	if len(args) == 0 {
		((*testing.T)(dl)).Log(msg)
		return
	}

	// Add braces with args inside to message.
	msg += " ("
	for i := 0; i < len(args); i += 2 {
		msg += " %v:\"%v\""
	}
	msg += " )"

	if lvl == logging.Fatal {
		dl.Fatalf(msg+"\n", args...)
	}

	dl.Logf(msg+"\n", args...)
}

// tone returns n samples of a sine wave of the given frequency and
// amplitude at the given sample rate.
func tone(n int, rate, freq, amp float64) pcm.Channel {
	f := make([]float64, n)
	for i := range f {
		f[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return pcm.ChannelFromFloats(f)
}

// craft returns a single channel container of the given tag followed by
// fields, each written little endian.
func craft(t *testing.T, tag string, fields ...interface{}) []byte {
	var buf bytes.Buffer
	buf.WriteString(tag)
	for _, f := range append([]interface{}{uint16(1), uint32(rate)}, fields...) {
		err := binary.Write(&buf, binary.LittleEndian, f)
		if err != nil {
			t.Fatalf("could not write field %v: %v", f, err)
		}
	}
	return buf.Bytes()
}
