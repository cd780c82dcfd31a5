package vectorstore

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"
)

// catalogIndex is an in-memory full-text index over course titles used to
// resolve partial or misspelled course names.
type catalogIndex struct {
	index bleve.Index
}

type titleDoc struct {
	Title string `json:"title"`
}

func newCatalogIndex() (*catalogIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create catalog index failed: %w", err)
	}
	return &catalogIndex{index: index}, nil
}

func (c *catalogIndex) add(title string) error {
	if err := c.index.Index(title, titleDoc{Title: title}); err != nil {
		return fmt.Errorf("index course title failed: %w", err)
	}
	return nil
}

// best returns the highest scoring title for name. Every analyzed term of
// name must match a title term either within edit distance one or as a word
// prefix, so "Intro" and "Prompt Eng" resolve as well as "Promt". Equal scores
// resolve to the alphabetically first title.
func (c *catalogIndex) best(name string) (string, bool, error) {
	terms := c.terms(name)
	if len(terms) == 0 {
		return "", false, nil
	}
	clauses := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		fuzzy := bleve.NewFuzzyQuery(term)
		fuzzy.SetField("title")
		fuzzy.SetFuzziness(1)
		prefix := bleve.NewPrefixQuery(term)
		prefix.SetField("title")
		clauses = append(clauses, bleve.NewDisjunctionQuery(fuzzy, prefix))
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(clauses...), 1, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := c.index.Search(req)
	if err != nil {
		return "", false, fmt.Errorf("search catalog index failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return "", false, nil
	}
	return res.Hits[0].ID, true, nil
}

// terms runs name through the analyzer used for indexed titles, so query
// terms are lower-cased and stop words drop out the same way.
func (c *catalogIndex) terms(name string) []string {
	m := c.index.Mapping()
	analyzer := m.AnalyzerNamed(m.AnalyzerNameForPath("title"))
	if analyzer == nil {
		return strings.Fields(strings.ToLower(name))
	}
	var out []string
	for _, tok := range analyzer.Analyze([]byte(name)) {
		out = append(out, string(tok.Term))
	}
	return out
}

func (c *catalogIndex) close() error {
	return c.index.Close()
}
