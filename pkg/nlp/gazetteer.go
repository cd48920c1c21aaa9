package nlp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Gazetteer is an EntityAnnotator backed by a list of known surface forms.
// Each entry maps a (possibly multi-token) surface form to an entity class.
type Gazetteer struct {
	entries map[string]string
	// maxLen is the longest entry in tokens.
	maxLen int
}

// NewGazetteer builds an annotator from surface→class entries. Entries are
// tokenized with seg so they line up with annotated text.
func NewGazetteer(entries map[string]string, seg Segmenter) *Gazetteer {
	if seg == nil {
		seg = WhitespaceSegmenter{}
	}
	g := &Gazetteer{entries: make(map[string]string, len(entries))}
	for surface, class := range entries {
		key := seg.Segment(surface)
		if key == "" {
			continue
		}
		g.entries[key] = strings.ToUpper(strings.TrimSpace(class))
		if n := len(strings.Fields(key)); n > g.maxLen {
			g.maxLen = n
		}
	}
	return g
}

// ReadGazetteer parses tab-separated "surface<TAB>CLASS" lines. Blank lines
// and lines starting with '#' are skipped.
func ReadGazetteer(r io.Reader) (map[string]string, error) {
	entries := make(map[string]string)
	scan := bufio.NewScanner(r)
	line := 0
	for scan.Scan() {
		line++
		text := strings.TrimSpace(scan.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		surface, class, ok := strings.Cut(text, "\t")
		if !ok || strings.TrimSpace(surface) == "" || strings.TrimSpace(class) == "" {
			return nil, fmt.Errorf("gazetteer line %d: want surface<TAB>class, got %q", line, text)
		}
		entries[strings.TrimSpace(surface)] = strings.TrimSpace(class)
	}
	return entries, scan.Err()
}

// LoadGazetteer reads a gazetteer file.
func LoadGazetteer(path string, seg Segmenter) (*Gazetteer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := ReadGazetteer(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewGazetteer(entries, seg), nil
}

// Annotate implements EntityAnnotator using greedy longest match. text is a
// corpus sentence, already tokenized; only brackets are normalized so the
// tags line up token for token.
func (g *Gazetteer) Annotate(text string) (string, error) {
	tokens := strings.Fields(WhitespaceSegmenter{}.Segment(text))
	tags := make([]string, len(tokens))
	for i := 0; i < len(tokens); {
		n, class := g.match(tokens[i:])
		if n == 0 {
			tags[i] = tokens[i] + "_O"
			i++
			continue
		}
		for j := 0; j < n; j++ {
			prefix := "I-"
			if j == 0 {
				prefix = "B-"
			}
			tags[i+j] = tokens[i+j] + "_" + prefix + class
		}
		i += n
	}
	return strings.Join(tags, " "), nil
}

func (g *Gazetteer) match(tokens []string) (int, string) {
	limit := min(g.maxLen, len(tokens))
	for n := limit; n > 0; n-- {
		if class, ok := g.entries[strings.Join(tokens[:n], " ")]; ok {
			return n, class
		}
	}
	return 0, ""
}
