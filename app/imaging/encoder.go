// Package imaging turns uploaded files into inline data URIs so listings can
// carry their pictures without any file storage.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes bounds a single upload.
const DefaultMaxBytes = 5 << 20

var ErrTooLarge = errors.New("file exceeds the upload size limit")

// Encoder reads files and renders them as data URIs. It does not limit how
// many images a listing holds.
type Encoder struct {
	MaxBytes int64
}

func NewEncoder(maxBytes int64) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Encoder{MaxBytes: maxBytes}
}

// Encode reads r to the end and returns "data:<media-type>;base64,<payload>".
// It blocks until the read finishes, ctx is cancelled, or the read fails; on
// failure no partial result is returned.
func (e *Encoder) Encode(ctx context.Context, r io.Reader) (string, error) {
	data, err := e.read(ctx, r)
	if err != nil {
		return "", err
	}
	return DataURI(data), nil
}

// MediaType returns the media type detected for an encoded data URI, without parameters.
func MediaType(dataURI string) string {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(rest, ";")
	return mediaType
}

// DataURI renders data with its sniffed media type.
func DataURI(data []byte) string {
	mediaType, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return "data:" + strings.TrimSpace(mediaType) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (e *Encoder) read(ctx context.Context, r io.Reader) ([]byte, error) {
	limit := e.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	var buf bytes.Buffer
	chunk := make([]byte, 32<<10)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			if int64(buf.Len()+n) > limit {
				return nil, ErrTooLarge
			}
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading upload: %w", err)
		}
	}
}
