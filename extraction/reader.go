package extraction

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
)

// SourceReader reads files below a repository root through a bounded cache.
// It is safe for concurrent use.
type SourceReader struct {
	root   string
	cache  *ristretto.Cache[string, string]
	logger *slog.Logger
}

// ReaderOption configures a SourceReader.
type ReaderOption func(*SourceReader) error

// WithReaderLogger sets a custom logger.
// Default is slog.Default().
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(r *SourceReader) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewSourceReader creates a reader rooted at root that keeps at most
// maxFiles file contents in memory.
func NewSourceReader(root string, maxFiles int, opts ...ReaderOption) (*SourceReader, error) {
	if maxFiles < 1 {
		maxFiles = 1
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: int64(maxFiles) * 10,
		MaxCost:     int64(maxFiles),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating source cache: %w", err)
	}

	r := &SourceReader{
		root:   abs,
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			cache.Close()
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "source_reader")
	return r, nil
}

// Root returns the resolved repository root.
func (r *SourceReader) Root() string {
	return r.root
}

// Read returns the content of path, which is relative to the root or an
// absolute path inside it. Paths that resolve outside the root return
// ErrOutsideRepo. A missing file returns an error matching os.ErrNotExist.
func (r *SourceReader) Read(path string) (string, error) {
	full, err := r.resolve(path)
	if err != nil {
		return "", err
	}
	if content, ok := r.cache.Get(full); ok {
		return content, nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	content := string(data)
	r.cache.Set(full, content, 1)
	return content, nil
}

// Close releases the cache.
func (r *SourceReader) Close() {
	r.cache.Close()
}

func (r *SourceReader) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", os.ErrNotExist)
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.root, full)
	}
	full = filepath.Clean(full)
	if resolved, err := filepath.EvalSymlinks(full); err == nil {
		full = resolved
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	rel, err := filepath.Rel(r.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		r.logger.Warn("refusing to read outside repository root", "path", path)
		return "", fmt.Errorf("%w: %s", ErrOutsideRepo, path)
	}
	return full, nil
}
