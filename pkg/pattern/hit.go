package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HitSeparator delimits the fields of a serialized raw hit.
const HitSeparator = "]["

// ErrMalformedHit is returned for raw-hit lines that cannot be decoded.
var ErrMalformedHit = errors.New("malformed raw hit")

// RawHit is one observation of a pattern connecting an entity pair in a sentence.
type RawHit struct {
	Relation string
	// Pattern keeps the ?D?/?R? placeholders so orientation is recoverable.
	Pattern     string
	FirstLabel  string // domain surface form
	SecondLabel string // range surface form
	SentenceID  int64
}

// String encodes the hit as a single line (without newline).
func (h RawHit) String() string {
	return strings.Join([]string{
		h.Relation, h.Pattern, h.FirstLabel, h.SecondLabel,
		strconv.FormatInt(h.SentenceID, 10),
	}, HitSeparator)
}

// Validate reports whether the hit survives a String/ParseHit round trip: no
// text field may contain the separator or a line break.
func (h RawHit) Validate() error {
	for _, f := range []string{h.Relation, h.Pattern, h.FirstLabel, h.SecondLabel} {
		if strings.Contains(f, HitSeparator) || strings.ContainsAny(f, "\r\n") {
			return fmt.Errorf("%w: field %q cannot be encoded", ErrMalformedHit, f)
		}
	}
	if h.Relation == "" || h.Pattern == "" {
		return fmt.Errorf("%w: empty relation or pattern", ErrMalformedHit)
	}
	return nil
}

// ParseHit decodes a line produced by RawHit.String. intern, if not nil, is
// applied to the four text fields.
func ParseHit(line string, intern func(string) string) (RawHit, error) {
	parts := strings.Split(line, HitSeparator)
	if len(parts) != 5 {
		return RawHit{}, fmt.Errorf("%w: want 5 fields, got %d", ErrMalformedHit, len(parts))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(parts[4]), 10, 64)
	if err != nil {
		return RawHit{}, fmt.Errorf("%w: sentence id: %v", ErrMalformedHit, err)
	}
	if parts[0] == "" || parts[1] == "" {
		return RawHit{}, fmt.Errorf("%w: empty relation or pattern", ErrMalformedHit)
	}
	if intern == nil {
		intern = func(s string) string { return s }
	}
	return RawHit{
		Relation:    intern(parts[0]),
		Pattern:     intern(parts[1]),
		FirstLabel:  intern(parts[2]),
		SecondLabel: intern(parts[3]),
		SentenceID:  id,
	}, nil
}
