/*
NAME
  writeseeker.go

DESCRIPTION
  writeseeker.go provides a memory based io.WriteSeeker so that WAV files,
  whose headers are patched on close, can be built without touching disk.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package wav

import (
	"errors"
	"io"
)

// WriteSeeker implements a memory based io.WriteSeeker.
type WriteSeeker struct {
	buf []byte
	pos int
}

// Bytes returns the bytes written so far.
func (ws *WriteSeeker) Bytes() []byte {
	return ws.buf
}

// Write writes p at the current position, growing the buffer as needed.
func (ws *WriteSeeker) Write(p []byte) (n int, err error) {
	end := ws.pos + len(p)
	if end > cap(ws.buf) {
		buf2 := make([]byte, len(ws.buf), end+len(p))
		copy(buf2, ws.buf)
		ws.buf = buf2
	}
	if end > len(ws.buf) {
		ws.buf = ws.buf[:end]
	}
	copy(ws.buf[ws.pos:], p)
	ws.pos = end
	return len(p), nil
}

// Seek sets the offset for the next Write to offset, interpreted according
// to whence: SeekStart means relative to the start of the buffer, SeekCurrent
// means relative to the current offset, and SeekEnd means relative to the
// end.
func (ws *WriteSeeker) Seek(offset int64, whence int) (int64, error) {
	newPos, offs := 0, int(offset)
	switch whence {
	case io.SeekStart:
		newPos = offs
	case io.SeekCurrent:
		newPos = ws.pos + offs
	case io.SeekEnd:
		newPos = len(ws.buf) + offs
	default:
		return 0, errors.New("invalid whence")
	}
	if newPos < 0 {
		return 0, errors.New("negative result pos")
	}
	ws.pos = newPos
	return int64(newPos), nil
}
