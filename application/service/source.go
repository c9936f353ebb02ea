package service

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SourceKind identifies where a query image comes from.
type SourceKind int

// Source kinds.
const (
	SourceBytes SourceKind = iota
	SourcePath
	SourceURL
)

// Source is a query image: a local path, an http(s) URL or raw bytes.
type Source struct {
	kind     SourceKind
	location string
	data     []byte
}

// FromPath returns a Source reading the file at path.
func FromPath(path string) Source { return Source{kind: SourcePath, location: path} }

// FromURL returns a Source fetching url.
func FromURL(url string) Source { return Source{kind: SourceURL, location: url} }

// FromBytes returns a Source over data.
func FromBytes(data []byte) Source { return Source{kind: SourceBytes, data: data} }

// ParseSource treats http:// and https:// locations as URLs and anything
// else as a file path.
func ParseSource(location string) Source {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return FromURL(location)
	}
	return FromPath(location)
}

// Kind returns the source kind.
func (s Source) Kind() SourceKind { return s.kind }

// Location returns the path or URL, empty for byte sources.
func (s Source) Location() string { return s.location }

func (s Source) String() string {
	if s.kind == SourceBytes {
		return fmt.Sprintf("<%d bytes>", len(s.data))
	}
	return s.location
}

// Fetcher downloads remote images.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SourceReader loads the bytes behind a Source.
type SourceReader struct {
	fetcher Fetcher
}

// NewSourceReader creates a SourceReader. fetcher may be nil, in which case
// URL sources fail.
func NewSourceReader(fetcher Fetcher) SourceReader {
	return SourceReader{fetcher: fetcher}
}

// Read returns the raw image bytes for src.
func (r SourceReader) Read(ctx context.Context, src Source) ([]byte, error) {
	switch src.kind {
	case SourceBytes:
		if len(src.data) == 0 {
			return nil, fmt.Errorf("%w: empty image", ErrInvalidSource)
		}
		return src.data, nil
	case SourcePath:
		if src.location == "" {
			return nil, fmt.Errorf("%w: empty path", ErrInvalidSource)
		}
		data, err := os.ReadFile(src.location)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
		return data, nil
	case SourceURL:
		if r.fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher for %s", ErrInvalidSource, src.location)
		}
		return r.fetcher.Fetch(ctx, src.location)
	default:
		return nil, fmt.Errorf("%w: unknown source kind %d", ErrInvalidSource, src.kind)
	}
}
