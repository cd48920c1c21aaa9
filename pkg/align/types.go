package align

import (
	"strings"

	"github.com/japaniel/patternminer/pkg/pattern"
)

// Named-entity classes emitted by the annotators.
const (
	ClassPerson       = "PER"
	ClassLocation     = "LOC"
	ClassOrganization = "ORG"
	ClassMisc         = "MISC"
)

// TypeMapper resolves semantic type URIs (e.g. dbpedia-owl:Country) to the
// named-entity class an annotator tags them with.
type TypeMapper struct {
	classes map[string]string
}

var defaultClasses = map[string]string{
	"Person":         ClassPerson,
	"Agent":          ClassPerson,
	"Artist":         ClassPerson,
	"Athlete":        ClassPerson,
	"Politician":     ClassPerson,
	"Writer":         ClassPerson,
	"Place":          ClassLocation,
	"PopulatedPlace": ClassLocation,
	"Country":        ClassLocation,
	"City":           ClassLocation,
	"Town":           ClassLocation,
	"Settlement":     ClassLocation,
	"Location":       ClassLocation,
	"River":          ClassLocation,
	"Mountain":       ClassLocation,
	"Island":         ClassLocation,
	"Organisation":   ClassOrganization,
	"Organization":   ClassOrganization,
	"Company":        ClassOrganization,
	"Legislature":    ClassOrganization,
	"University":     ClassOrganization,
	"SportsTeam":     ClassOrganization,
	"PoliticalParty": ClassOrganization,
	"Band":           ClassOrganization,
}

// NewTypeMapper returns a mapper seeded with the built-in classes; overrides
// are keyed by local name or full URI.
func NewTypeMapper(overrides map[string]string) *TypeMapper {
	m := &TypeMapper{classes: make(map[string]string, len(defaultClasses)+len(overrides))}
	for k, v := range defaultClasses {
		m.classes[k] = v
	}
	for k, v := range overrides {
		m.classes[k] = strings.ToUpper(v)
	}
	return m
}

// DefaultTypes is the mapper used when none is configured.
var DefaultTypes = NewTypeMapper(nil)

// Class returns the entity class for typeURI. Bare class names ("PER") pass
// through; unknown types fall back to MISC.
func (m *TypeMapper) Class(typeURI string) string {
	if c, ok := m.classes[typeURI]; ok {
		return c
	}
	if c, ok := m.classes[pattern.LocalName(typeURI)]; ok {
		return c
	}
	switch up := strings.ToUpper(typeURI); up {
	case ClassPerson, ClassLocation, ClassOrganization, ClassMisc:
		return up
	}
	return ClassMisc
}
