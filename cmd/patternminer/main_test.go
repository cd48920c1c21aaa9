package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/patternminer/pkg/nlp"
)

const corpusText = `Angela Merkel was born in Hamburg .
Barack Obama was born in Honolulu .
Olaf Scholz was born in Osnabrück .
Berlin is the capital of Germany .
Paris is the capital of France .
`

const gazetteerTSV = `# surface	class
Angela Merkel	PER
Barack Obama	PER
Olaf Scholz	PER
Hamburg	LOC
Honolulu	LOC
Osnabrück	LOC
Berlin	LOC
Paris	LOC
Germany	LOC
France	LOC
`

const relationsYAML = `relations:
  - uri: http://dbpedia.org/ontology/birthPlace
    domain: http://dbpedia.org/ontology/Person
    range: http://dbpedia.org/ontology/Place
  - uri: http://dbpedia.org/ontology/capital
    domain: http://dbpedia.org/ontology/Country
    range: http://dbpedia.org/ontology/City
seeds:
  - {relation: http://dbpedia.org/ontology/birthPlace, subject: [Angela Merkel], object: [Hamburg]}
  - {relation: http://dbpedia.org/ontology/birthPlace, subject: [Barack Obama], object: [Honolulu]}
  - {relation: http://dbpedia.org/ontology/capital, subject: [Germany], object: [Berlin]}
  - {relation: http://dbpedia.org/ontology/capital, subject: [France], object: [Paris]}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportRunShow(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "corpus.db")
	work := filepath.Join(dir, "work")
	text := writeFile(t, dir, "corpus.txt", corpusText)
	gaz := writeFile(t, dir, "entities.tsv", gazetteerTSV)
	rel := writeFile(t, dir, "relations.yaml", relationsYAML)

	out, err := execute(t, "import", "--corpus", db, "--file", text)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported 5 sentences")

	out, err = execute(t, "import", "--corpus", db, "--file", text)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported 0 sentences")

	out, err = execute(t, "run", "--corpus", db, "--work-dir", work, "--relations", rel, "--gazetteer", gaz, "--log-level", "warn")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Searched 4 seeds")
	assert.Contains(t, out, "Scored 2 patterns in 2 mappings")

	out, err = execute(t, "run", "--corpus", db, "--work-dir", work, "--relations", rel, "--gazetteer", gaz,
		"--use-serialized-hits", "--log-level", "warn")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Search skipped")

	out, err = execute(t, "show", "--work-dir", work, "--relation", "birthPlace")
	require.NoError(t, err, out)
	assert.Contains(t, out, "?D? was born in ?R?")
	assert.NotContains(t, out, "capital of")

	_, err = execute(t, "show", "--work-dir", work, "--relation", "spouse")
	assert.Error(t, err)
}

func TestImportURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Capitals</title></head><body><article>
<p>Berlin is the capital of Germany. It has been the seat of the federal government since 1999 and is the largest city of the country by population.</p>
<p>Paris is the capital of France. The city lies on the Seine and has been a centre of finance, diplomacy and commerce for centuries.</p>
</article></body></html>`)
	}))
	defer srv.Close()

	db := filepath.Join(t.TempDir(), "corpus.db")
	out, err := execute(t, "import", "--corpus", db, "--url", srv.URL)
	require.NoError(t, err, out)
	assert.Contains(t, out, `sentences from "Capitals"`)
}

func TestImportSplitsPunctuation(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "corpus.db")
	work := filepath.Join(dir, "work")
	text := writeFile(t, dir, "prose.txt", "Angela Merkel was born in Hamburg. Barack Obama was born in Honolulu.\n"+
		"Berlin, the capital of Germany, is large.\n")
	gaz := writeFile(t, dir, "entities.tsv", gazetteerTSV)
	rel := writeFile(t, dir, "relations.yaml", relationsYAML)

	out, err := execute(t, "import", "--corpus", db, "--file", text)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported 3 sentences")

	out, err = execute(t, "run", "--corpus", db, "--work-dir", work, "--relations", rel, "--gazetteer", gaz, "--log-level", "warn")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Searched 4 seeds: 3 hits")

	out, err = execute(t, "show", "--work-dir", work, "--relation", "birthPlace")
	require.NoError(t, err, out)
	assert.Contains(t, out, "?D? was born in ?R?")
}

func TestLanguageTools(t *testing.T) {
	seg, tagger, err := languageTools("english")
	require.NoError(t, err)
	assert.IsType(t, &nlp.English{}, seg)
	assert.IsType(t, &nlp.English{}, tagger)

	seg, tagger, err = languageTools("whitespace")
	require.NoError(t, err)
	assert.IsType(t, nlp.WhitespaceSegmenter{}, seg)
	assert.IsType(t, &nlp.English{}, tagger)

	seg, tagger, err = languageTools("kagome")
	require.NoError(t, err)
	assert.IsType(t, &nlp.Analyzer{}, seg)
	assert.IsType(t, &nlp.Analyzer{}, tagger)

	_, _, err = languageTools("regex")
	assert.ErrorContains(t, err, "unknown segmenter")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "corpus.db")

	_, err := execute(t, "import", "--corpus", db)
	assert.ErrorContains(t, err, "exactly one of --url or --file")

	_, err = execute(t, "import", "--corpus", db, "--file", "x", "--segmenter", "regex")
	assert.ErrorContains(t, err, "Config.Segmenter")

	_, err = execute(t, "run", "--corpus", db, "--work-dir", dir)
	assert.ErrorContains(t, err, "relations and gazetteer")

	_, err = execute(t, "show", "--work-dir", dir, "--log-level", "loud")
	assert.ErrorContains(t, err, "LogLevel")

	_, err = execute(t, "show", "--work-dir", dir)
	assert.ErrorContains(t, err, "no mappings")
}
