// Package capture reads and writes framed channel captures.
//
// A capture is a UTF-8 text stream with one record per line:
//
//	<channel> <F|B> <bits> <hex> [nid=fail]
//
// F records are NID bearing frames, B records are PDU data blocks that follow
// a header on the same channel. Blank lines and lines starting with # are
// ignored. Files ending in .zst are zstd compressed.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
)

// Kind distinguishes frames from data blocks
type Kind byte

const (
	KindFrame Kind = 'F'
	KindBlock Kind = 'B'
)

// maxLine bounds one record; an LDU is under 2000 bits
const maxLine = 64 * 1024

// Record is one captured frame or data block
type Record struct {
	Channel string
	Kind    Kind
	Bits    *bits.BitField
	NIDCRC  edac.CRC
}

// LineError reports a malformed record. Reading may continue after it.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// Reader yields records from a capture stream
type Reader struct {
	scanner *bufio.Scanner
	line    int
	closers []io.Closer
}

// NewReader reads an uncompressed capture
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLine)
	return &Reader{scanner: s}
}

// NewZstdReader reads a zstd compressed capture
func NewZstdReader(r io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	cr := NewReader(dec)
	cr.closers = append(cr.closers, closerFunc(func() error {
		dec.Close()
		return nil
	}))
	return cr, nil
}

// Open opens a capture file, decompressing it when the name ends in .zst
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		r := NewReader(f)
		r.closers = append(r.closers, f)
		return r, nil
	}
	r, err := NewZstdReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// Next returns the next record, or io.EOF at the end of the stream. A
// malformed line returns a *LineError; any other error ends the stream.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := ParseLine(text)
		if err != nil {
			return Record{}, &LineError{Line: r.line, Err: err}
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read capture: %w", err)
	}
	return Record{}, io.EOF
}

// Line is the number of the last line read
func (r *Reader) Line() int { return r.line }

// Close releases the decoder and the underlying file, if any
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// ParseLine parses one record
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 || len(fields) > 5 {
		return Record{}, fmt.Errorf("expected 4 or 5 fields, got %d", len(fields))
	}

	rec := Record{Channel: fields[0], NIDCRC: edac.Pass()}
	switch fields[1] {
	case "F":
		rec.Kind = KindFrame
	case "B":
		rec.Kind = KindBlock
	default:
		return Record{}, fmt.Errorf("unknown record kind %q", fields[1])
	}

	size, err := strconv.Atoi(fields[2])
	if err != nil || size <= 0 {
		return Record{}, fmt.Errorf("invalid bit count %q", fields[2])
	}
	rec.Bits, err = bits.FromHex(fields[3], size)
	if err != nil {
		return Record{}, err
	}

	if len(fields) == 5 {
		if fields[4] != "nid=fail" {
			return Record{}, fmt.Errorf("unknown flag %q", fields[4])
		}
		if rec.Kind != KindFrame {
			return Record{}, errors.New("nid flag on a data block")
		}
		rec.NIDCRC = edac.Fail(0)
	}
	return rec, nil
}

// Format renders a record as one capture line without the newline. The hex
// field is MSB aligned with the last nibble zero padded.
func Format(rec Record) string {
	hex := fmt.Sprintf("%X", rec.Bits.Bytes())
	if rec.Bits.Size()%8 != 0 && rec.Bits.Size()%8 <= 4 {
		hex = hex[:len(hex)-1]
	}
	s := fmt.Sprintf("%s %c %d %s", rec.Channel, rec.Kind, rec.Bits.Size(), hex)
	if rec.Kind == KindFrame && rec.NIDCRC.Failed() {
		s += " nid=fail"
	}
	return s
}

// Writer appends records to a capture stream
type Writer struct {
	w   *bufio.Writer
	enc *zstd.Encoder
}

// NewWriter writes an uncompressed capture
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// NewZstdWriter writes a zstd compressed capture
func NewZstdWriter(w io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Writer{w: bufio.NewWriter(enc), enc: enc}, nil
}

// Write appends one record
func (w *Writer) Write(rec Record) error {
	if _, err := w.w.WriteString(Format(rec) + "\n"); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Comment appends a # line
func (w *Writer) Comment(text string) error {
	_, err := w.w.WriteString("# " + text + "\n")
	return err
}

// Close flushes buffered records and finishes the zstd frame. The
// underlying writer is left open.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.enc != nil {
		return w.enc.Close()
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
