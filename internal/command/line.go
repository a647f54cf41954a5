package command

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

// LineReader yields one line of input per call, without its terminator.
// It returns io.EOF once input is exhausted.
type LineReader interface {
	ReadLine() (string, error)
}

// Clip shortens line to at most max characters. Bytes that are not valid
// UTF-8 count as one character each and are kept as they are.
func Clip(line string, max int) (string, bool) {
	if max <= 0 {
		return line, false
	}
	i := 0
	for n := 0; i < len(line); n++ {
		if n == max {
			return line[:i], true
		}
		_, size := utf8.DecodeRuneInString(line[i:])
		i += size
	}
	return line, false
}

// BoundedReader limits every line returned by R to Max characters.
// Over-long lines are clipped and passed to Clipped before being returned.
type BoundedReader struct {
	R       LineReader
	Max     int
	Clipped func(original string)
}

func (b *BoundedReader) ReadLine() (string, error) {
	line, err := b.R.ReadLine()
	if err != nil {
		return line, err
	}
	clipped, ok := Clip(line, b.Max)
	if ok && b.Clipped != nil {
		b.Clipped(line)
	}
	return clipped, nil
}

// StreamReader reads lines from a plain stream such as a pipe. Lines of
// any length are accepted; only enough of each line to hold max+1
// characters is kept and the rest is discarded up to the next newline.
type StreamReader struct {
	r     *bufio.Reader
	limit int
}

// NewStreamReader reads lines from r. A max of zero or less keeps whole
// lines.
func NewStreamReader(r io.Reader, max int) *StreamReader {
	limit := 0
	if max > 0 {
		limit = (max + 1) * utf8.UTFMax
	}
	return &StreamReader{r: bufio.NewReader(r), limit: limit}
}

func (s *StreamReader) ReadLine() (string, error) {
	var line []byte
	read := 0
	for {
		chunk, err := s.r.ReadSlice('\n')
		read += len(chunk)
		if err == nil {
			chunk = bytes.TrimSuffix(bytes.TrimSuffix(chunk, []byte("\n")), []byte("\r"))
		}
		if s.limit > 0 && len(line)+len(chunk) > s.limit {
			chunk = chunk[:max(s.limit-len(line), 0)]
		}
		line = append(line, chunk...)

		switch {
		case err == nil:
			return string(line), nil
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if read == 0 {
				return "", io.EOF
			}
			return string(line), nil
		default:
			return "", err
		}
	}
}
