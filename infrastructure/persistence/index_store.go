package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/edsrzf/mmap-go"

	"github.com/yksoni-monk/poke/domain/catalog"
)

// Index artifact file names.
const (
	VectorsFile  = "embeddings.npy"
	MetadataFile = "image_metadata.json"
)

// metadataRecord is one entry of the metadata artifact.
type metadataRecord struct {
	Index  *int   `json:"index,omitempty"`
	CardID string `json:"card_id"`
}

// IndexStore persists a catalog index as a dense float32 array and a
// parallel JSON metadata array in one directory.
type IndexStore struct {
	dir    string
	logger *slog.Logger
}

// NewIndexStore creates an IndexStore for dir.
func NewIndexStore(dir string, logger *slog.Logger) *IndexStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexStore{dir: dir, logger: logger}
}

// Dir returns the artifact directory.
func (s *IndexStore) Dir() string { return s.dir }

// VectorsPath returns the vector array path.
func (s *IndexStore) VectorsPath() string { return filepath.Join(s.dir, VectorsFile) }

// MetadataPath returns the metadata path.
func (s *IndexStore) MetadataPath() string { return filepath.Join(s.dir, MetadataFile) }

// Exists reports whether an index has been saved. The vector array is
// renamed into place last, so its presence implies the metadata.
func (s *IndexStore) Exists() bool {
	_, err := os.Stat(s.VectorsPath())
	return err == nil
}

// Stamp returns the modification time of the vector array, which changes
// whenever a build renames a new index into place.
func (s *IndexStore) Stamp() (time.Time, bool) {
	info, err := os.Stat(s.VectorsPath())
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Save writes both artifacts to temporary files and renames them into
// place, metadata first.
func (s *IndexStore) Save(index catalog.Index) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	records := make([]metadataRecord, index.Len())
	for i := range records {
		records[i] = metadataRecord{CardID: index.ID(i)}
		if row := index.Row(i); row != catalog.NoRow {
			records[i].Index = &row
		}
	}

	metaTmp, err := s.writeTemp(MetadataFile, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	})
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	defer func() { _ = os.Remove(metaTmp) }()

	vecTmp, err := s.writeTemp(VectorsFile, func(f *os.File) error {
		return writeNPY(f, index.Len(), index.Dimension(), index.Data())
	})
	if err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	defer func() { _ = os.Remove(vecTmp) }()

	if err := os.Rename(metaTmp, s.MetadataPath()); err != nil {
		return fmt.Errorf("rename metadata: %w", err)
	}
	if err := os.Rename(vecTmp, s.VectorsPath()); err != nil {
		return fmt.Errorf("rename vectors: %w", err)
	}

	s.logger.Info("saved catalog index",
		slog.String("dir", s.dir),
		slog.Int("entries", index.Len()),
		slog.Int("dimension", index.Dimension()),
	)
	return nil
}

func (s *IndexStore) writeTemp(name string, write func(*os.File) error) (string, error) {
	f, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Load reads both artifacts. Missing artifacts fail with
// catalog.ErrIndexNotFound; disagreeing counts or unreadable content fail
// with catalog.ErrIndexCorrupt.
func (s *IndexStore) Load() (catalog.Index, error) {
	for _, p := range []string{s.VectorsPath(), s.MetadataPath()} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return catalog.Index{}, fmt.Errorf("%w: %s", catalog.ErrIndexNotFound, p)
			}
			return catalog.Index{}, fmt.Errorf("stat %s: %w", p, err)
		}
	}

	records, err := s.loadMetadata()
	if err != nil {
		return catalog.Index{}, err
	}

	rows, cols, data, err := s.loadVectors()
	if err != nil {
		return catalog.Index{}, err
	}
	if rows != len(records) {
		return catalog.Index{}, &catalog.CorruptionError{Vectors: rows, Metadata: len(records)}
	}

	ids := make([]string, len(records))
	positions := make([]int, len(records))
	for i, r := range records {
		ids[i] = r.CardID
		positions[i] = catalog.NoRow
		if r.Index != nil {
			positions[i] = *r.Index
		}
	}

	index, err := catalog.NewIndex(cols, ids, positions, data)
	if err != nil {
		return catalog.Index{}, err
	}

	s.logger.Info("loaded catalog index",
		slog.String("dir", s.dir),
		slog.Int("entries", index.Len()),
		slog.Int("dimension", index.Dimension()),
	)
	return index, nil
}

func (s *IndexStore) loadMetadata() ([]metadataRecord, error) {
	raw, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var records []metadataRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", catalog.ErrIndexCorrupt, catalog.ErrInvalidRecord, err)
	}
	for i, r := range records {
		if r.CardID == "" {
			return nil, fmt.Errorf("%w: %w: record %d has no card_id", catalog.ErrIndexCorrupt, catalog.ErrInvalidRecord, i)
		}
	}
	return records, nil
}

// loadVectors maps the array file read-only and decodes the payload into
// owned memory. The mapping is released before returning, so a loaded
// index stays valid after the files are removed or replaced.
func (s *IndexStore) loadVectors() (rows, cols int, data []float32, err error) {
	f, err := os.Open(s.VectorsPath())
	if err != nil {
		return 0, 0, nil, fmt.Errorf("open vectors: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: map vectors: %v", catalog.ErrIndexCorrupt, err)
	}
	defer func() { _ = m.Unmap() }()

	header, offset, err := parseNPYHeader(m)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", catalog.ErrIndexCorrupt, err)
	}
	if header.descr != npyFloat32LE || header.fortran {
		return 0, 0, nil, fmt.Errorf("%w: unsupported array layout %q fortran=%t", catalog.ErrIndexCorrupt, header.descr, header.fortran)
	}

	switch len(header.shape) {
	case 1:
		if header.shape[0] != 0 {
			return 0, 0, nil, fmt.Errorf("%w: 1-D vector array", catalog.ErrIndexCorrupt)
		}
	case 2:
		rows, cols = header.shape[0], header.shape[1]
	default:
		return 0, 0, nil, fmt.Errorf("%w: vector array has %d dimensions", catalog.ErrIndexCorrupt, len(header.shape))
	}

	payload := m[offset:]
	if want := rows * cols * 4; len(payload) != want {
		return 0, 0, nil, fmt.Errorf("%w: vector payload is %d bytes, shape needs %d", catalog.ErrIndexCorrupt, len(payload), want)
	}
	return rows, cols, decodeFloat32LE(payload), nil
}
