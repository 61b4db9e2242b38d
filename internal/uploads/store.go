// Package uploads stores jpeg attachments sent as data URIs so they can
// be served back over /uploads/:filename.
package uploads

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/calmcall/calmcall/internal/domain"
)

var (
	ErrNotDataURI      = errors.New("uploads: not an image data URI")
	ErrInvalidFilename = errors.New("uploads: invalid filename")
)

var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// DecodeDataURI strips the data:image/...;base64, prefix and decodes the
// payload. Bare base64 without a prefix is accepted too, matching what
// browsers actually send.
func DecodeDataURI(uri string) ([]byte, error) {
	raw := dataURIPrefix.ReplaceAllString(uri, "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}
	return data, nil
}

// Save writes the image under <unix-ms>_<sid>.jpg and returns the filename.
func (s *Store) Save(sid domain.SessionID, data []byte) (string, error) {
	name := fmt.Sprintf("%d_%s.jpg", s.now().UnixMilli(), sid)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("uploads: write: %w", err)
	}
	return name, nil
}

// Path resolves a stored filename, rejecting anything that would escape
// the uploads directory.
func (s *Store) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", ErrInvalidFilename
	}
	return filepath.Join(s.dir, name), nil
}
