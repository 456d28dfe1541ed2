// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// maxFrameSize caps a single wire frame. 1 MB is generous for any
// operation payload; a longer line is a framing error and closes the
// connection (the id cannot be trusted on a truncated frame).
const maxFrameSize = 1024 * 1024

// initialBufferSize is the scanner's starting buffer. Most frames are
// well under 64 KB.
const initialBufferSize = 64 * 1024

// DecodeError reports a frame that could not be turned into a valid
// [Request]. RawID holds the request id when it could be extracted
// from the broken frame; Recoverable is true in that case and the
// server answers with an error response. When Recoverable is false
// the server has no id to address a response to and closes the
// connection instead.
type DecodeError struct {
	RawID       string
	Recoverable bool
	Err         error
}

func (e *DecodeError) Error() string {
	if e.Recoverable {
		return fmt.Sprintf("invalid frame (id %q): %v", e.RawID, e.Err)
	}
	return fmt.Sprintf("invalid frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder reads newline-delimited request frames from a stream. A
// frame is only decoded once the full line (up to '\n') has been
// buffered; partial reads never leak between frames.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder wraps r in a frame decoder.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxFrameSize)
	return &Decoder{scanner: scanner}
}

// Decode returns the next request frame. On end of stream it returns
// io.EOF. Malformed frames are reported as a [*DecodeError]; the
// stream position advances past the bad line, so the caller may keep
// decoding when the error is recoverable.
func (d *Decoder) Decode() (*Request, error) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var request Request
		if err := json.Unmarshal(line, &request); err != nil {
			return nil, decodeFailure(line, fmt.Errorf("parsing frame: %w", err))
		}
		if request.ID == "" {
			return nil, &DecodeError{Err: errors.New("missing required field: id")}
		}
		if request.Method == "" {
			return nil, &DecodeError{
				RawID:       request.ID,
				Recoverable: true,
				Err:         errors.New("missing required field: method"),
			}
		}
		return &request, nil
	}

	if err := d.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &DecodeError{Err: fmt.Errorf("frame exceeds %d bytes", maxFrameSize)}
		}
		return nil, err
	}
	return nil, io.EOF
}

// decodeFailure builds the DecodeError for a line that failed full
// unmarshaling. A second, looser pass extracts just the id field so
// the server can still address an error response. If the line is not
// JSON at all, or the id is absent or not a string, the error is
// unrecoverable.
func decodeFailure(line []byte, err error) *DecodeError {
	var partial struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(line, &partial) == nil && partial.ID != "" {
		return &DecodeError{RawID: partial.ID, Recoverable: true, Err: err}
	}
	return &DecodeError{Err: err}
}

// Encoder writes response frames to a stream. Encode is safe for
// concurrent use: the line is assembled in full before a single
// locked Write, so frames from racing completions never interleave.
type Encoder struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewEncoder wraps w in a frame encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: w}
}

// Encode marshals response and writes it as one newline-terminated
// frame.
func (e *Encoder) Encode(response Response) error {
	frame, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshaling response %q: %w", response.ID, err)
	}
	frame = append(frame, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.writer.Write(frame); err != nil {
		return fmt.Errorf("writing response %q: %w", response.ID, err)
	}
	return nil
}
