package runstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

type fileStore struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

// NewFileStore creates a Store writing one JSON document per run under
// baseURL, which may be a local path or any afs URL.
func NewFileStore(baseURL string) (Store, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("file runstore: base URL cannot be empty")
	}

	fs := afs.New()
	ctx := context.Background()
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}

	return &fileStore{
		baseURL: url.Normalize(baseURL, file.Scheme),
		fs:      fs,
	}, nil
}

func (s *fileStore) recordURL(runID string) string {
	return url.Join(s.baseURL, runID+".json")
}

// validID keeps run ids from resolving outside the base directory.
func validID(runID string) error {
	if runID == "" {
		return ErrEmptyID
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, runID)
	}
	return nil
}

func (s *fileStore) Save(ctx context.Context, rec Record) error {
	if err := validID(rec.RunID); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.recordURL(rec.RunID)
	if err := s.fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save run to %s: %w", target, err)
	}
	return nil
}

func (s *fileStore) Get(ctx context.Context, runID string) (Record, error) {
	if err := validID(runID); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	target := s.recordURL(runID)
	exists, err := s.fs.Exists(ctx, target)
	if err != nil {
		return Record{}, fmt.Errorf("failed to check run %s: %w", runID, err)
	}
	if !exists {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}

	data, err := s.fs.DownloadWithURL(ctx, target)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read run %s: %w", runID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return rec, nil
}

// List skips documents that cannot be read or decoded.
func (s *fileStore) List(ctx context.Context, graphName string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var records []Record
	for _, object := range objects {
		if object.IsDir() || path.Ext(object.Name()) != ".json" {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}

	slices.SortStableFunc(records, newest)
	return filter(records, graphName, limit), nil
}

func (s *fileStore) Close() error {
	return nil
}
