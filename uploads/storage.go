// Package uploads stores profile images under collision-free generated names.
package uploads

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize caps a single profile image
const MaxImageSize = 5 << 20

var (
	ErrNotImage = errors.New("uploaded file is not a supported image")
	ErrTooLarge = errors.New("uploaded file is too large")
	ErrNotFound = errors.New("image not found")
)

// Storage persists uploaded images and serves them back by name
type Storage interface {
	// Save stores the image durably and returns its generated name
	Save(ctx context.Context, r io.Reader) (string, error)
	// Open returns the image body and its content type
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, name string) error
}

var extensions = map[string]string{
	"image/jpeg": ".jpeg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var namePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(jpeg|png|gif|webp)$`)

// ValidName reports whether name could have been produced by Save.
// It keeps path traversal out of Open and Remove.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ContentType maps a stored name back to its MIME type
func ContentType(name string) string {
	ext := path.Ext(name)
	for contentType, e := range extensions {
		if e == ext {
			return contentType
		}
	}
	return "application/octet-stream"
}

// sniff inspects the head of r and returns a generated name for it together
// with a reader that still yields the full content
func sniff(r io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", nil, err
	}
	if len(head) == 0 {
		return "", nil, ErrNotImage
	}

	contentType := strings.SplitN(http.DetectContentType(head), ";", 2)[0]
	ext, ok := extensions[contentType]
	if !ok {
		return "", nil, ErrNotImage
	}
	return uuid.New().String() + ext, br, nil
}

// readLimited reads r fully, failing when it exceeds MaxImageSize
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
