package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/timmy/pokedex/internal/domain"
)

// LocalIndex is an in-process, memory-only document index. It serves the same
// upsert/remove/search/passages surface as the hosted index.
type LocalIndex struct {
	index bleve.Index
}

// indexedDocument is the stored form of a NormalizedDocument.
type indexedDocument struct {
	Title      string
	Body       string
	URI        string
	Image      string
	Number     float64
	Types      []string
	Species    string
	Generation string
	Category   string
}

var storedFields = []string{"Title", "Body", "URI", "Number", "Types", "Species", "Generation", "Category"}

// NewLocalIndex creates an empty in-memory index.
func NewLocalIndex() (*LocalIndex, error) {
	idx, err := bleve.NewMemOnly(buildLocalMapping())
	if err != nil {
		return nil, fmt.Errorf("create local index: %w", err)
	}
	return &LocalIndex{index: idx}, nil
}

func buildLocalMapping() mapping.IndexMapping {
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = "en"

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = "keyword"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("Body", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Species", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Types", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Generation", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Category", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("URI", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Number", bleve.NewNumericFieldMapping())

	image := bleve.NewTextFieldMapping()
	image.Index = false
	image.IncludeInAll = false
	docMapping.AddFieldMappingsAt("Image", image)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// Close closes the index.
func (l *LocalIndex) Close() error {
	return l.index.Close()
}

// Upsert replaces the document keyed by doc.DocumentID.
func (l *LocalIndex) Upsert(ctx context.Context, doc domain.NormalizedDocument) error {
	if doc.DocumentID == "" {
		return domain.NewError(domain.KindPublishFailed, "document id is required")
	}
	stored := indexedDocument{
		Title:      doc.Title,
		Body:       doc.Body,
		URI:        doc.ClickableURI,
		Image:      doc.ImageURI,
		Number:     float64(doc.Number),
		Types:      doc.Types,
		Species:    doc.Species,
		Generation: doc.Generation,
		Category:   doc.Category,
	}
	if err := l.index.Index(doc.DocumentID, stored); err != nil {
		return domain.WrapError(domain.KindPublishFailed, err, "index %s", doc.DocumentID)
	}
	return nil
}

// Remove deletes the document keyed by documentID. Removing an unknown id is not an error.
func (l *LocalIndex) Remove(ctx context.Context, documentID string) error {
	if err := l.index.Delete(documentID); err != nil {
		return domain.WrapError(domain.KindDeleteFailed, err, "delete %s", documentID)
	}
	return nil
}

// Count returns the number of documents in the index.
func (l *LocalIndex) Count() (uint64, error) {
	return l.index.DocCount()
}

// Lookup returns the stored document with the given id.
func (l *LocalIndex) Lookup(ctx context.Context, documentID string) (*domain.SearchHit, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{documentID}), 1, 0, false)
	req.Fields = storedFields
	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", documentID, err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	hit := toSearchHit(res.Hits[0])
	return &hit, nil
}

func (l *LocalIndex) query(ctx context.Context, query string, limit int) (*bleve.SearchResult, error) {
	title := bleve.NewMatchQuery(query)
	title.SetField("Title")
	title.SetBoost(3)
	all := bleve.NewMatchQuery(query)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(title, all), limit, 0, false)
	req.Fields = storedFields
	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// Search returns up to limit hits by relevance.
func (l *LocalIndex) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	res, err := l.query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, toSearchHit(h))
	}
	return hits, nil
}

// RetrievePassages returns the best matching sentence of each relevant document,
// highest score first.
func (l *LocalIndex) RetrievePassages(ctx context.Context, query string, limit int) ([]domain.Passage, error) {
	res, err := l.query(ctx, query, limit*2)
	if err != nil {
		return nil, err
	}

	terms := queryTerms(query)
	var passages []domain.Passage
	for _, h := range res.Hits {
		body := fieldString(h.Fields["Body"])
		text, overlap := bestSentence(body, terms)
		if text == "" {
			continue
		}
		passages = append(passages, domain.Passage{
			DocumentTitle: fieldString(h.Fields["Title"]),
			DocumentURI:   fieldString(h.Fields["URI"]),
			Text:          text,
			Score:         h.Score * (1 + float64(overlap)),
		})
	}

	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })
	if limit > 0 && len(passages) > limit {
		passages = passages[:limit]
	}
	return passages, nil
}

func toSearchHit(h *search.DocumentMatch) domain.SearchHit {
	hit := domain.SearchHit{
		Title:      fieldString(h.Fields["Title"]),
		URI:        fieldString(h.Fields["URI"]),
		Types:      fieldStrings(h.Fields["Types"]),
		Species:    fieldString(h.Fields["Species"]),
		Generation: fieldString(h.Fields["Generation"]),
		Category:   fieldString(h.Fields["Category"]),
		Score:      h.Score,
	}
	if n, ok := h.Fields["Number"].(float64); ok {
		hit.Number = int(n)
	}
	hit.Excerpt = excerpt(fieldString(h.Fields["Body"]), 200)
	return hit
}

func fieldString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := fieldStrings(t)
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func fieldStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func excerpt(body string, max int) string {
	r := []rune(strings.TrimSpace(body))
	if len(r) <= max {
		return string(r)
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}

func queryTerms(query string) map[string]bool {
	terms := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) > 2 {
			terms[w] = true
		}
	}
	return terms
}

// bestSentence picks the sentence sharing the most terms with the query.
// Ties keep the earliest sentence.
func bestSentence(body string, terms map[string]bool) (string, int) {
	best, bestOverlap := "", -1
	for _, s := range splitSentences(body) {
		overlap := 0
		for w := range queryTerms(s) {
			if terms[w] {
				overlap++
			}
		}
		if overlap > bestOverlap {
			best, bestOverlap = s, overlap
		}
	}
	if bestOverlap < 0 {
		return "", 0
	}
	return best, bestOverlap
}

func splitSentences(body string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range body {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
