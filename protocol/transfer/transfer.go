// transfer.go specifies the line based messaging of the transfer protocol.
//
// A requester writes a single file name line. The server answers with a single
// header line, either "OK " followed by the raw file bytes until it closes its
// write side, or "ERR <reason>" after which the connection is closed.
package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineLength bounds the length of a request or header line, terminator included.
const MaxLineLength = 4096

const (
	okHeader  = "OK"
	errHeader = "ERR"
)

var (
	ErrLineTooLong = errors.New("line exceeds maximum length")
	ErrEmptyName   = errors.New("empty file name")
	ErrInvalidName = errors.New("file name contains a line break")
)

// HeaderType specifies the kind of response header sent by a serving peer.
type HeaderType int

const (
	Unknown HeaderType = iota // Header line that is neither OK nor ERR, treated as success
	OK                        // File bytes follow the header
	Failure                   // Header carries the failure reason, nothing follows
)

func (t HeaderType) Name() string {
	switch t {
	case OK:
		return "OK"
	case Failure:
		return "ERR"
	default:
		return "Unknown"
	}
}

// Header is the first line of a transfer response.
type Header struct {
	Type   HeaderType
	Reason string
}

// Err returns the failure carried by the header, nil if the header announces a body.
func (h Header) Err() error {
	if h.Type != Failure {
		return nil
	}
	return Error{Reason: h.Reason}
}

// Error is a failure reported by the remote peer in an ERR header.
type Error struct {
	Reason string
}

func (e Error) Error() string {
	return e.Reason
}

// NewReader returns a buffered reader able to hold a full protocol line.
// Bytes following the header stay buffered, so the body must be read from the
// returned reader rather than from the underlying connection.
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, MaxLineLength)
}

// WriteRequest writes the file request line.
func WriteRequest(w io.Writer, fileName string) error {
	if strings.TrimSpace(fileName) == "" {
		return ErrEmptyName
	}
	if strings.ContainsAny(fileName, "\r\n") {
		return ErrInvalidName
	}
	if _, err := io.WriteString(w, fileName+"\n"); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}
	return nil
}

// ReadRequest reads the requested file name, with surrounding whitespace trimmed.
func ReadRequest(r *bufio.Reader) (string, error) {
	line, err := readLine(r)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(line)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// WriteOK writes the success header. The trailing space is part of the wire format.
func WriteOK(w io.Writer) error {
	if _, err := io.WriteString(w, okHeader+" \n"); err != nil {
		return fmt.Errorf("writing OK header: %w", err)
	}
	return nil
}

// WriteError writes the failure header with the provided reason.
func WriteError(w io.Writer, reason string) error {
	reason = strings.NewReplacer("\r", " ", "\n", " ").Replace(reason)
	if _, err := io.WriteString(w, errHeader+" "+reason+"\n"); err != nil {
		return fmt.Errorf("writing ERR header: %w", err)
	}
	return nil
}

// ReadHeader reads and parses the response header.
func ReadHeader(r *bufio.Reader) (Header, error) {
	line, err := readLine(r)
	if err != nil {
		return Header{}, err
	}
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, errHeader):
		return Header{Type: Failure, Reason: strings.TrimSpace(line[len(errHeader):])}, nil
	case line == okHeader:
		return Header{Type: OK}, nil
	default:
		return Header{Type: Unknown, Reason: line}, nil
	}
}

// readLine reads up to and including the next newline. A final line without a
// terminator is accepted. Returns io.EOF if the stream ended before any byte.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrLineTooLong
	case errors.Is(err, io.EOF) && len(line) > 0:
		return string(line), nil
	case err != nil:
		return "", err
	}
	return string(line), nil
}
