// Package ingest decodes inbound log batches: transparent gzip-or-identity
// decompression followed by newline-delimited JSON parsing.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrBadPayload indicates the batch body could not be decoded at all,
// e.g. a corrupt gzip stream. Individual malformed lines are not errors.
var ErrBadPayload = errors.New("bad batch payload")

// maxLineBytes caps a single NDJSON line. Log records are small; a line
// beyond this is dropped like a malformed one while the rest of the
// batch keeps decoding.
const maxLineBytes = 1 << 20

// gzipMagic is the two-byte gzip stream header.
var gzipMagic = []byte{0x1f, 0x8b}

// Decode reads a possibly-compressed newline-delimited JSON body and
// returns one raw message per well-formed non-blank line. Malformed lines
// are dropped silently so one corrupt record cannot block a batch.
// contentEncoding is the transport's declared encoding ("gzip" or empty);
// when empty the stream is sniffed for the gzip magic bytes.
func Decode(r io.Reader, contentEncoding string) ([]json.RawMessage, error) {
	buffered := bufio.NewReader(r)

	compressed := strings.EqualFold(strings.TrimSpace(contentEncoding), "gzip")
	if !compressed {
		head, err := buffered.Peek(len(gzipMagic))
		if err == nil && bytes.Equal(head, gzipMagic) {
			compressed = true
		}
	}

	var body io.Reader = buffered
	if compressed {
		zr, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("%w: open gzip stream: %v", ErrBadPayload, err)
		}
		defer zr.Close()
		body = zr
	}

	var (
		records []json.RawMessage
		reader  = bufio.NewReaderSize(body, 64*1024)
		line    []byte
		tooLong bool
	)
	for {
		chunk, err := reader.ReadSlice('\n')
		if !tooLong && len(chunk) > 0 {
			line = append(line, chunk...)
			if len(line) > maxLineBytes {
				tooLong = true
				line = line[:0]
			}
		}

		switch {
		case err == nil:
			// Full line in hand; an over-long one is dropped silently.
			if !tooLong {
				if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 && json.Valid(trimmed) {
					records = append(records, json.RawMessage(bytes.Clone(trimmed)))
				}
			}
			line = line[:0]
			tooLong = false
		case errors.Is(err, bufio.ErrBufferFull):
			// Line continues past the read buffer; keep accumulating (or
			// keep skipping, once over the cap).
		case errors.Is(err, io.EOF):
			if !tooLong {
				if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 && json.Valid(trimmed) {
					records = append(records, json.RawMessage(bytes.Clone(trimmed)))
				}
			}
			return records, nil
		default:
			// A read failure mid-stream (truncated gzip included) poisons
			// the whole batch; partial decode output is discarded.
			return nil, fmt.Errorf("%w: read batch body: %v", ErrBadPayload, err)
		}
	}
}
