// Package store persists scored pattern mappings as one JSON file per relation.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/japaniel/patternminer/pkg/pattern"
)

// Ext is the extension of persisted mapping files.
const Ext = ".json"

type patternRecord struct {
	pattern.Pattern
	FoundIn []int64 `json:"foundIn"`
}

type mappingFile struct {
	Relation pattern.Relation `json:"relation"`
	Patterns []patternRecord  `json:"patterns"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName returns the file a relation's mapping is stored in: its local name
// plus a short hash of the full URI, so relations sharing a local name do not
// overwrite each other.
func FileName(rel pattern.Relation) string {
	name := strings.Trim(unsafeChars.ReplaceAllString(pattern.LocalName(rel.URI), "_"), "_")
	if name == "" {
		name = "relation"
	}
	return fmt.Sprintf("%s-%08x%s", name, xxhash.Sum64String(rel.URI)>>32, Ext)
}

// Persist writes every mapping into dir, replacing earlier files of the same
// relations. It returns the written paths.
func Persist(fs afero.Fs, mappings []*pattern.Mapping, dir string) ([]string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(mappings))
	for _, m := range mappings {
		file := mappingFile{Relation: m.Relation, Patterns: make([]patternRecord, 0, len(m.Patterns))}
		for _, p := range m.Patterns {
			file.Patterns = append(file.Patterns, patternRecord{Pattern: *p, FoundIn: p.Sentences()})
		}
		data, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("encode %s: %w", m.Relation.URI, err)
		}
		path := filepath.Join(dir, FileName(m.Relation))
		if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Load reads a single mapping file.
func Load(fs afero.Fs, path string) (*pattern.Mapping, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var file mappingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	m := pattern.NewMapping(file.Relation)
	for i := range file.Patterns {
		rec := file.Patterns[i]
		p := rec.Pattern
		p.FoundIn = make(map[int64]struct{}, len(rec.FoundIn))
		for _, id := range rec.FoundIn {
			p.FoundIn[id] = struct{}{}
		}
		if p.LearnedFrom == nil {
			p.LearnedFrom = make(map[string]int)
		}
		if err := m.Add(&p); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return m, nil
}

// Available lists the mapping files in dir, sorted.
func Available(fs afero.Fs, dir string) ([]string, error) {
	files, err := afero.Glob(fs, filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LoadAll loads every mapping file in dir.
func LoadAll(fs afero.Fs, dir string) ([]*pattern.Mapping, error) {
	files, err := Available(fs, dir)
	if err != nil {
		return nil, err
	}
	mappings := make([]*pattern.Mapping, 0, len(files))
	for _, f := range files {
		m, err := Load(fs, f)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}
