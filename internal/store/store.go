// Package store persists per-tenant, per-category memory on the filesystem.
//
// Each tenant owns one directory named by its credential. A category is
// backed by exactly one of two representations: a structured JSON document
// or an append-only text log. Reads prefer the structured file when both
// exist; overwrites remove the other representation so at most one survives.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"memorykeep/pkg/memorykeep"
)

const (
	structuredExtension = "json"
	rawExtension        = "txt"
	// Log extension kept for on-disk compatibility with existing
	// "experience" namespaces.
	experienceExtension = "log"

	directoryMode = 0o755
	fileMode      = 0o644
)

// Store is a filesystem-backed namespace store.
//
// A per-(tenant, category) mutex is held across every read-modify-write
// span, so concurrent appends to the same structured document cannot lose
// updates. Distinct pairs never contend.
type Store struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// New creates a Store rooted at baseDir, creating the directory if needed.
func New(baseDir string) (*Store, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("new store: empty base directory")
	}
	if err := os.MkdirAll(trimmed, directoryMode); err != nil {
		return nil, fmt.Errorf("new store: create base directory: %w", err)
	}

	return &Store{
		baseDir: trimmed,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}, nil
}

// Append adds one entry to a tenant's category.
//
// A JSON object entry is stamped with a server-assigned timestamp and
// appended to the category's structured document; every other entry shape is
// written as one "[timestamp] text" line to the category's log.
func (s *Store) Append(credential string, category string, entry json.RawMessage) error {
	if err := validateNames(credential, category); err != nil {
		return fmt.Errorf("store append: %w", err)
	}
	if err := s.ensureNamespace(credential); err != nil {
		return fmt.Errorf("store append: %w", err)
	}

	unlock := s.lock(credential, category)
	defer unlock()

	timestamp := s.now().Format(time.RFC3339)
	if memorykeep.ShapeOf(entry) == memorykeep.ShapeObject {
		return s.appendStructured(credential, category, entry, timestamp)
	}

	return s.appendRaw(credential, category, memorykeep.RawText(entry), timestamp)
}

// Read returns a tenant's memory for one category.
//
// The structured file wins when both representations exist. A structured
// file that fails to parse reports ErrStorageCorrupt rather than masking the
// failure as absence. ErrNotFound means neither file exists.
func (s *Store) Read(credential string, category string) (memorykeep.Payload, error) {
	if err := validateNames(credential, category); err != nil {
		return memorykeep.Payload{}, fmt.Errorf("store read: %w", err)
	}

	unlock := s.lock(credential, category)
	defer unlock()

	structuredPath := s.structuredPath(credential, category)
	data, err := os.ReadFile(structuredPath)
	switch {
	case err == nil:
		if !json.Valid(data) {
			return memorykeep.Payload{}, fmt.Errorf(
				"store read %s/%s: %w", credential, category, memorykeep.ErrStorageCorrupt,
			)
		}
		return memorykeep.Payload{
			Format: memorykeep.FormatStructured,
			JSON:   json.RawMessage(data),
		}, nil
	case !errors.Is(err, os.ErrNotExist):
		return memorykeep.Payload{}, fmt.Errorf("store read %s: %w", structuredPath, err)
	}

	rawPath := s.rawPath(credential, category)
	text, err := os.ReadFile(rawPath)
	switch {
	case err == nil:
		return memorykeep.Payload{
			Format: memorykeep.FormatRaw,
			Text:   string(text),
		}, nil
	case !errors.Is(err, os.ErrNotExist):
		return memorykeep.Payload{}, fmt.Errorf("store read %s: %w", rawPath, err)
	}

	return memorykeep.Payload{}, fmt.Errorf(
		"store read %s/%s: %w", credential, category, memorykeep.ErrNotFound,
	)
}

// Overwrite replaces a tenant's category memory with entry.
//
// Objects and arrays are written verbatim (not wrapped, not timestamped) to
// the structured file; everything else is written trimmed to the log. The
// other representation's file is removed so a later read cannot resurrect
// replaced content.
func (s *Store) Overwrite(credential string, category string, entry json.RawMessage) error {
	if err := validateNames(credential, category); err != nil {
		return fmt.Errorf("store overwrite: %w", err)
	}
	if err := s.ensureNamespace(credential); err != nil {
		return fmt.Errorf("store overwrite: %w", err)
	}

	unlock := s.lock(credential, category)
	defer unlock()

	if memorykeep.ShapeOf(entry) != memorykeep.ShapeRaw {
		indented, err := reindentJSON(entry)
		if err != nil {
			return fmt.Errorf("store overwrite %s/%s: %w", credential, category, err)
		}
		if err := s.writeFile(s.structuredPath(credential, category), indented); err != nil {
			return fmt.Errorf("store overwrite: %w", err)
		}
		return s.removeStale(s.rawPath(credential, category))
	}

	text := strings.TrimSpace(memorykeep.RawText(entry)) + "\n"
	if err := s.writeFile(s.rawPath(credential, category), []byte(text)); err != nil {
		return fmt.Errorf("store overwrite: %w", err)
	}

	return s.removeStale(s.structuredPath(credential, category))
}

// appendStructured performs the structured read-modify-write under the pair lock.
func (s *Store) appendStructured(
	credential string,
	category string,
	entry json.RawMessage,
	timestamp string,
) error {
	path := s.structuredPath(credential, category)

	// Missing file and unparsable content both start a fresh list; append
	// recovers from corruption rather than failing the write.
	var records []map[string]any
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &records); err != nil {
			records = nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read structured memory %s: %w", path, err)
	}

	var record map[string]any
	if err := json.Unmarshal(entry, &record); err != nil {
		return fmt.Errorf("decode structured entry: %w", err)
	}
	record["timestamp"] = timestamp
	records = append(records, record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode structured memory: %w", err)
	}

	return s.writeFile(path, data)
}

// appendRaw appends one log line to the category's text log.
func (s *Store) appendRaw(credential string, category string, text string, timestamp string) error {
	path := s.rawPath(credential, category)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open raw memory %s: %w", path, err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "[%s] %s\n", timestamp, text); err != nil {
		return fmt.Errorf("append raw memory %s: %w", path, err)
	}

	return nil
}

// writeFile replaces path content through a same-directory temp file rename,
// so readers never observe a partially written document.
func (s *Store) writeFile(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tempName := temp.Name()

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempName)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tempName, fileMode); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}

// removeStale deletes a superseded representation file, ignoring absence.
func (s *Store) removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale memory %s: %w", path, err)
	}

	return nil
}

// ensureNamespace creates the tenant directory; creation is idempotent.
func (s *Store) ensureNamespace(credential string) error {
	dir := filepath.Join(s.baseDir, credential)
	if err := os.MkdirAll(dir, directoryMode); err != nil {
		return fmt.Errorf("create namespace %s: %w", dir, err)
	}

	return nil
}

func (s *Store) structuredPath(credential string, category string) string {
	return filepath.Join(s.baseDir, credential, category+"."+structuredExtension)
}

func (s *Store) rawPath(credential string, category string) string {
	extension := rawExtension
	if category == memorykeep.DefaultCategory {
		extension = experienceExtension
	}

	return filepath.Join(s.baseDir, credential, category+"."+extension)
}

// lock acquires the pair mutex and returns its release function.
func (s *Store) lock(credential string, category string) func() {
	key := credential + "\x00" + category

	s.mu.Lock()
	pairLock, exists := s.locks[key]
	if !exists {
		pairLock = &sync.Mutex{}
		s.locks[key] = pairLock
	}
	s.mu.Unlock()

	pairLock.Lock()
	return pairLock.Unlock
}

// validateNames rejects identifiers that would escape the namespace layout.
func validateNames(credential string, category string) error {
	for _, name := range []string{credential, category} {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty name: %w", memorykeep.ErrBadRequest)
		}
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("invalid name %q: %w", name, memorykeep.ErrBadRequest)
		}
	}

	return nil
}

// reindentJSON normalizes a verbatim document to two-space indentation,
// matching the append writer's output.
func reindentJSON(entry json.RawMessage) ([]byte, error) {
	var value any
	if err := json.Unmarshal(entry, &value); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}

	return data, nil
}
