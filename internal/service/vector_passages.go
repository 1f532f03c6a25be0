package service

import (
	"context"
	"strings"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/repository"
)

const maxChunkChars = 600

// Embedder turns text into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// PassageStore persists embedded chunks keyed by document.
type PassageStore interface {
	ReplaceDocument(ctx context.Context, documentID string, points []repository.PassagePoint) error
	DeleteDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, vector []float32, topK int) ([]repository.PassageMatch, error)
}

// VectorPassageIndex chunks and embeds document bodies for semantic passage retrieval.
// It is both a publish mirror and a PassageRetriever.
type VectorPassageIndex struct {
	embedder Embedder
	store    PassageStore
}

// NewVectorPassageIndex creates a vector passage index.
func NewVectorPassageIndex(embedder Embedder, store PassageStore) *VectorPassageIndex {
	return &VectorPassageIndex{embedder: embedder, store: store}
}

// Upsert replaces every chunk of doc.
func (v *VectorPassageIndex) Upsert(ctx context.Context, doc domain.NormalizedDocument) error {
	chunks := chunkText(doc.Body, maxChunkChars)
	if len(chunks) == 0 {
		return v.store.DeleteDocument(ctx, doc.DocumentID)
	}

	vectors, err := v.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return err
	}

	points := make([]repository.PassagePoint, len(chunks))
	for i, text := range chunks {
		points[i] = repository.PassagePoint{
			DocumentID: doc.DocumentID,
			Title:      doc.Title,
			URI:        doc.ClickableURI,
			Chunk:      i,
			Text:       text,
			Vector:     vectors[i],
		}
	}
	return v.store.ReplaceDocument(ctx, doc.DocumentID, points)
}

// Remove deletes every chunk of documentID.
func (v *VectorPassageIndex) Remove(ctx context.Context, documentID string) error {
	return v.store.DeleteDocument(ctx, documentID)
}

// RetrievePassages returns the closest chunks to query, best first.
func (v *VectorPassageIndex) RetrievePassages(ctx context.Context, query string, limit int) ([]domain.Passage, error) {
	vector, err := v.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := v.store.Search(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	passages := make([]domain.Passage, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, domain.Passage{
			DocumentTitle: m.Title,
			DocumentURI:   m.URI,
			Text:          m.Text,
			Score:         float64(m.Score),
		})
	}
	return passages, nil
}

// chunkText packs whole paragraphs and sentences into chunks of at most max characters.
// A single sentence longer than max becomes its own chunk.
func chunkText(body string, max int) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(body, "\n\n") {
		for _, sentence := range strings.SplitAfter(para, ". ") {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if cur.Len() > 0 && cur.Len()+1+len(sentence) > max {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(sentence)
		}
		if cur.Len() >= max/2 {
			flush()
		}
	}
	flush()
	return chunks
}
