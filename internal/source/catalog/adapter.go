package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/timmy/pokedex/internal/source"
)

// Adapter implements the Source interface for a catalog file.
// The file is either a JSON array of entries or JSON Lines.
type Adapter struct {
	path    string
	entries []source.CatalogEntry
	loaded  bool
}

// NewAdapter creates a new catalog adapter.
// Parameters:
//   - path: path to the catalog file (e.g. data/pokemon.json).
// Returns:
//   - *Adapter: initialized adapter; the file is read on the first FetchBatch.
func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "catalog:" + filepath.Base(a.path)
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Catalog (%s)", a.path)
}

// FetchBatch fetches a batch of catalog entries.
// Parameters:
//   - ctx: context for cancellation (unused for local reads).
//   - cursor: pagination cursor as an index string.
//   - limit: maximum number of entries to fetch.
// Returns:
//   - []source.CatalogEntry: batch of entries.
//   - string: next cursor or empty if no more entries.
//   - error: non-nil if loading or parsing fails.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.CatalogEntry, string, error) {
	if !a.loaded {
		if err := a.load(); err != nil {
			return nil, "", fmt.Errorf("failed to load catalog: %w", err)
		}
		a.loaded = true
	}

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return nil, "", fmt.Errorf("invalid cursor: %q", cursor)
		}
	}
	if start >= len(a.entries) {
		return []source.CatalogEntry{}, "", nil
	}
	if limit <= 0 {
		limit = len(a.entries)
	}

	end := start + limit
	if end > len(a.entries) {
		end = len(a.entries)
	}

	next := ""
	if end < len(a.entries) {
		next = strconv.Itoa(end)
	}
	return a.entries[start:end], next, nil
}

func (a *Adapter) load() error {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(data)
	var entries []source.CatalogEntry
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return fmt.Errorf("parse %s: %w", a.path, err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var entry source.CatalogEntry
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				// Skip malformed lines
				continue
			}
			entries = append(entries, entry)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read %s: %w", a.path, err)
		}
	}

	a.entries = a.entries[:0]
	for _, e := range entries {
		if e.Name == "" || e.URL == "" {
			continue
		}
		a.entries = append(a.entries, e)
	}
	return nil
}
