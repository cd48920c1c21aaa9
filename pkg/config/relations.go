package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/japaniel/patternminer/pkg/pattern"
)

type relationDoc struct {
	URI    string `yaml:"uri" validate:"required"`
	Domain string `yaml:"domain" validate:"required"`
	Range  string `yaml:"range" validate:"required"`
}

type seedDoc struct {
	Relation string   `yaml:"relation" validate:"required"`
	Subject  []string `yaml:"subject" validate:"min=1,dive,required"`
	Object   []string `yaml:"object" validate:"min=1,dive,required"`
}

type relationsDoc struct {
	Relations []relationDoc     `yaml:"relations" validate:"min=1,dive"`
	Seeds     []seedDoc         `yaml:"seeds" validate:"dive"`
	Types     map[string]string `yaml:"types"`
}

// Relations is the background knowledge a run starts from.
type Relations struct {
	Relations []pattern.Relation
	Seeds     []pattern.Seed
	// Types overrides the entity class of semantic types, keyed by local
	// name or URI.
	Types map[string]string
}

// Index maps relation URIs to relations.
func (r *Relations) Index() map[string]pattern.Relation {
	idx := make(map[string]pattern.Relation, len(r.Relations))
	for _, rel := range r.Relations {
		idx[rel.URI] = rel
	}
	return idx
}

// ReadRelations parses and validates a relations document. Every seed must
// reference a declared relation.
func ReadRelations(r io.Reader) (*Relations, error) {
	var doc relationsDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("relations: empty document")
		}
		return nil, fmt.Errorf("relations: %w", err)
	}
	if err := validateStruct(&doc); err != nil {
		return nil, err
	}
	out := &Relations{Types: doc.Types}
	known := make(map[string]bool, len(doc.Relations))
	for _, rel := range doc.Relations {
		if known[rel.URI] {
			return nil, fmt.Errorf("relations: %s declared twice", rel.URI)
		}
		known[rel.URI] = true
		out.Relations = append(out.Relations, pattern.Relation{URI: rel.URI, Domain: rel.Domain, Range: rel.Range})
	}
	for i, s := range doc.Seeds {
		if !known[s.Relation] {
			return nil, fmt.Errorf("relations: seed %d references undeclared relation %s", i, s.Relation)
		}
		out.Seeds = append(out.Seeds, pattern.Seed{Relation: s.Relation, Subject: s.Subject, Object: s.Object})
	}
	return out, nil
}

// LoadRelations reads a relations file.
func LoadRelations(path string) (*Relations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rel, err := ReadRelations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rel, nil
}
