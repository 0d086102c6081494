package serialization

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// StreamMagic opens every save stream.
var StreamMagic = NewTag("BMSV")

// StreamVersion is the framing version written by StreamWriter.
const StreamVersion uint32 = 1

// StreamWriter writes records to an io.Writer. Each record is buffered until
// the next OpenRecord or Close so its length can be written up front.
type StreamWriter struct {
	w       *bufio.Writer
	header  Header
	payload bytes.Buffer
	open    bool
	err     error
}

// NewStreamWriter writes the stream header to w.
func NewStreamWriter(w io.Writer) (*StreamWriter, error) {
	sw := &StreamWriter{w: bufio.NewWriter(w)}
	if err := WriteU32(sw.w, uint32(StreamMagic)); err != nil {
		return nil, err
	}
	if err := WriteU32(sw.w, StreamVersion); err != nil {
		return nil, err
	}
	return sw, nil
}

// OpenRecord finishes the current record and starts a new one.
func (s *StreamWriter) OpenRecord(tag Tag, version uint32) error {
	if err := s.flushRecord(); err != nil {
		return err
	}
	s.header = Header{Tag: tag, Version: version}
	s.open = true
	return nil
}

// Write appends to the open record.
func (s *StreamWriter) Write(p []byte) (int, error) {
	if !s.open {
		return 0, ErrNoRecord
	}
	return s.payload.Write(p)
}

// Close finishes the last record and flushes. It does not close the
// underlying writer.
func (s *StreamWriter) Close() error {
	if err := s.flushRecord(); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *StreamWriter) flushRecord() error {
	if s.err != nil {
		return s.err
	}
	if !s.open {
		return nil
	}
	s.header.Length = uint32(s.payload.Len())
	for _, v := range []uint32{uint32(s.header.Tag), s.header.Version, s.header.Length} {
		if err := WriteU32(s.w, v); err != nil {
			s.err = err
			return err
		}
	}
	if _, err := s.w.Write(s.payload.Bytes()); err != nil {
		s.err = err
		return err
	}
	s.payload.Reset()
	s.open = false
	return nil
}

// StreamReader reads records written by StreamWriter.
type StreamReader struct {
	r         *bufio.Reader
	header    Header
	remaining uint32
	open      bool
}

// NewStreamReader reads and checks the stream header.
func NewStreamReader(r io.Reader) (*StreamReader, error) {
	sr := &StreamReader{r: bufio.NewReader(r)}
	magic, err := ReadU32(sr.r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if Tag(magic) != StreamMagic {
		return nil, fmt.Errorf("%w: magic %s", ErrBadHeader, Tag(magic))
	}
	version, err := ReadU32(sr.r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if version != StreamVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, version)
	}
	return sr, nil
}

// NextRecord skips what is left of the current record and reads the next
// header.
func (s *StreamReader) NextRecord() (Header, error) {
	if s.remaining > 0 {
		if _, err := io.CopyN(io.Discard, s.r, int64(s.remaining)); err != nil {
			return Header{}, fmt.Errorf("skipping record %s: %w", s.header.Tag, io.ErrUnexpectedEOF)
		}
		s.remaining = 0
	}
	s.open = false

	var fields [3]uint32
	for i := range fields {
		v, err := ReadU32(s.r)
		if err != nil {
			if i == 0 && err == io.EOF {
				return Header{}, io.EOF
			}
			return Header{}, fmt.Errorf("%w: truncated record header", ErrBadHeader)
		}
		fields[i] = v
	}

	s.header = Header{Tag: Tag(fields[0]), Version: fields[1], Length: fields[2]}
	s.remaining = s.header.Length
	s.open = true
	return s.header, nil
}

// Read reads from the current record's payload.
func (s *StreamReader) Read(p []byte) (int, error) {
	if !s.open {
		return 0, ErrNoRecord
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.remaining == 0 {
		return 0, ErrRecordOverrun
	}
	if uint32(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.r.Read(p)
	s.remaining -= uint32(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// Remaining returns the unread payload bytes of the current record.
func (s *StreamReader) Remaining() uint32 {
	return s.remaining
}
