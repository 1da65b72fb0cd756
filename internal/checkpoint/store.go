// Package checkpoint persists per-keyword progress so interrupted runs can
// resume without re-scraping finished products.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrNotFound = errors.New("checkpoint not found")

const (
	primaryExt = ".ckpt"
	mirrorExt  = ".json"
	filePrefix = "checkpoint_"
)

type Options struct {
	Dir             string
	MinSaveInterval time.Duration
}

// Store writes each keyword's state to a compact primary document and an
// indented mirror with the same schema. Both are replaced atomically.
type Store struct {
	dir         string
	minInterval time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	lastSave map[string]time.Time

	now    func() time.Time
	rename func(oldpath, newpath string) error
}

func NewStore(opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Store{
		dir:         opts.Dir,
		minInterval: opts.MinSaveInterval,
		logger:      logger.With("component", "checkpoint_store"),
		lastSave:    make(map[string]time.Time),
		now:         time.Now,
		rename:      os.Rename,
	}, nil
}

// FileKey is the file-name form of a keyword.
func FileKey(keyword string) string {
	key := strings.Join(strings.Fields(keyword), "_")
	return strings.ReplaceAll(key, "/", "_")
}

func (s *Store) primaryPath(keyword string) string {
	return filepath.Join(s.dir, filePrefix+FileKey(keyword)+primaryExt)
}

func (s *Store) mirrorPath(keyword string) string {
	return filepath.Join(s.dir, filePrefix+FileKey(keyword)+mirrorExt)
}

// Save persists st unless the keyword was saved less than the minimum
// interval ago. saved reports whether anything was written.
func (s *Store) Save(keyword string, st *State) (saved bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastSave[keyword]; ok && s.now().Sub(last) < s.minInterval {
		return false, nil
	}
	if err := s.write(keyword, st); err != nil {
		return false, err
	}
	return true, nil
}

// ForceSave persists st regardless of the save interval.
func (s *Store) ForceSave(keyword string, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(keyword, st)
}

func (s *Store) write(keyword string, st *State) error {
	st.FormatVersion = FormatVersion
	st.Keyword = keyword
	st.SavedAt = s.now().UTC()
	st.RefreshProgress()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := s.replace(s.primaryPath(keyword), data); err != nil {
		return fmt.Errorf("failed to save checkpoint for %q: %w", keyword, err)
	}
	s.lastSave[keyword] = s.now()

	mirror, err := json.MarshalIndent(st, "", "  ")
	if err == nil {
		err = s.replace(s.mirrorPath(keyword), mirror)
	}
	if err != nil {
		s.logger.Warn("failed to write checkpoint mirror", "keyword", keyword, "error", err)
	}

	s.logger.Debug("checkpoint saved",
		"keyword", keyword,
		"products", len(st.AccumulatedRecords),
		"processed_urls", len(st.ProcessedURLs),
		"status", st.Metadata.Status)
	return nil
}

// replace writes data next to path and renames it into place, so readers
// see either the old or the new document.
func (s *Store) replace(path string, data []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return s.rename(tmp, path)
}

// Load returns the state saved for keyword. The mirror is consulted when
// the primary document is missing, corrupt or invalid. ErrNotFound wraps
// every reason a usable state could not be produced.
func (s *Store) Load(keyword string) (*State, error) {
	st, primaryErr := s.read(s.primaryPath(keyword), keyword)
	if primaryErr == nil {
		return st, nil
	}
	if !errors.Is(primaryErr, os.ErrNotExist) {
		s.logger.Warn("primary checkpoint unusable, trying mirror", "keyword", keyword, "error", primaryErr)
	}

	st, mirrorErr := s.read(s.mirrorPath(keyword), keyword)
	if mirrorErr == nil {
		return st, nil
	}

	if errors.Is(primaryErr, os.ErrNotExist) && errors.Is(mirrorErr, os.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", keyword, ErrNotFound)
	}
	return nil, fmt.Errorf("%q: %w: %v", keyword, ErrNotFound, errors.Join(primaryErr, mirrorErr))
}

var requiredFields = []string{"format_version", "keyword", "accumulated_records", "processed_urls"}

func (s *Store) read(path, keyword string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", filepath.Base(path), err)
	}
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("checkpoint %s is missing %q", filepath.Base(path), field)
		}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", filepath.Base(path), err)
	}
	if err := st.Validate(keyword); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", filepath.Base(path), err)
	}
	return &st, nil
}

// Clear removes both documents and forgets the save interval of keyword.
func (s *Store) Clear(keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lastSave, keyword)

	var errs []error
	for _, path := range []string{s.primaryPath(keyword), s.mirrorPath(keyword)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear checkpoint for %q: %w", keyword, errors.Join(errs...))
	}

	s.logger.Debug("checkpoint cleared", "keyword", keyword)
	return nil
}

// Summary describes one stored checkpoint.
type Summary struct {
	Keyword         string    `json:"keyword"`
	File            string    `json:"file"`
	Status          Status    `json:"status"`
	Products        int       `json:"products"`
	ProcessedURLs   int       `json:"processed_urls"`
	ProgressPercent float64   `json:"progress_percentage"`
	SavedAt         time.Time `json:"saved_at"`
	SmartResume     bool      `json:"smart_resume_available"`
	CachedURLs      int       `json:"cached_urls"`
}

// List summarizes every readable checkpoint, sorted by keyword. Unreadable
// files are logged and skipped.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var out []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, primaryExt) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("failed to read checkpoint", "file", name, "error", err)
			continue
		}
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			s.logger.Warn("skipping corrupt checkpoint", "file", name, "error", err)
			continue
		}

		out = append(out, Summary{
			Keyword:         st.Keyword,
			File:            name,
			Status:          st.Metadata.Status,
			Products:        len(st.AccumulatedRecords),
			ProcessedURLs:   len(st.ProcessedURLs),
			ProgressPercent: st.Metadata.ProgressPercent,
			SavedAt:         st.SavedAt,
			SmartResume:     st.Metadata.URLScrapingCompleted && len(st.Metadata.AllProductURLs) > 0,
			CachedURLs:      len(st.Metadata.AllProductURLs),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Keyword < out[j].Keyword })
	return out, nil
}
