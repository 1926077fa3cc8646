// Package stream turns a raw reply byte stream into ordered text fragments.
package stream

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	app_errors "lecture-me/client/internal/errors"
)

const readSize = 4096

// StreamError is returned when the source fails mid-read. Partial holds the
// text accumulated up to the failure.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s after %d bytes: %v", app_errors.ErrStream, len(e.Partial), e.Err)
}

func (e *StreamError) Unwrap() []error { return []error{app_errors.ErrStream, e.Err} }

// Decoder reads a byte stream and yields UTF-8 text fragments in wire order.
// A multi-byte rune split across reads is held back until it completes, so the
// accumulated text does not depend on chunk boundaries.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	src       io.Reader
	buf       []byte
	pending   []byte
	acc       strings.Builder
	fragments int
	err       error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{src: r, buf: make([]byte, readSize)}
}

// Next returns the next non-empty fragment. It returns io.EOF once the source
// is exhausted and a *StreamError if the source fails. After it returns an
// error every later call returns the same error.
func (d *Decoder) Next() (string, error) {
	for d.err == nil {
		n, err := d.src.Read(d.buf)
		var frag string
		if n > 0 {
			frag = d.decode(d.buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				frag += d.flush()
				d.err = io.EOF
			} else {
				d.err = &StreamError{Err: err}
			}
		}
		if frag != "" {
			d.acc.WriteString(frag)
			d.fragments++
			if se, ok := d.err.(*StreamError); ok {
				se.Partial = d.acc.String()
			}
			return frag, nil
		}
	}
	if se, ok := d.err.(*StreamError); ok {
		se.Partial = d.acc.String()
	}
	return "", d.err
}

// Accumulated returns every fragment seen so far, concatenated in arrival order.
func (d *Decoder) Accumulated() string { return d.acc.String() }

// Fragments returns the number of fragments returned by Next.
func (d *Decoder) Fragments() int { return d.fragments }

// decode converts p, prefixed by any held-back bytes, and keeps an incomplete
// trailing rune for the next read. Each maximal invalid subpart becomes one
// replacement rune.
func (d *Decoder) decode(p []byte) string {
	data := p
	if len(d.pending) > 0 {
		data = append(d.pending, p...)
		d.pending = nil
	}

	var sb strings.Builder
	for i := 0; i < len(data); {
		rest := data[i:]
		if !utf8.FullRune(rest) {
			d.pending = append([]byte(nil), rest...)
			break
		}
		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			i += invalidSubpart(rest)
			continue
		}
		sb.Write(rest[:size])
		i += size
	}
	return sb.String()
}

// flush emits whatever is held back at end of stream as a replacement rune.
func (d *Decoder) flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	d.pending = nil
	return string(utf8.RuneError)
}

// invalidSubpart returns the length of the longest prefix of p that could
// start a valid encoding, or 1. p must not begin with a valid rune.
func invalidSubpart(p []byte) int {
	for n := min(len(p), utf8.UTFMax-1); n > 1; n-- {
		if !utf8.FullRune(p[:n]) {
			return n
		}
	}
	return 1
}
