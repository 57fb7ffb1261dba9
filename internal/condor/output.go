package condor

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const truncatedMarker = "\n[output truncated]\n"

// cappedBuffer keeps at most limit bytes and silently drops the rest.
// A limit <= 0 means unbounded.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	room := b.limit - int64(b.buf.Len())
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

// String decodes the captured bytes, appending a marker when output was dropped.
func (b *cappedBuffer) String() string {
	s := decodeOutput(b.buf.Bytes())
	if b.truncated {
		s += truncatedMarker
	}
	return s
}

// decodeOutput never fails: UTF-8 passes through, anything else is read as
// ISO-8859-1 where every byte maps to a rune.
func decodeOutput(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return string(decoded)
}
