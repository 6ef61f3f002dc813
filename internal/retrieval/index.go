// Package retrieval turns a page snapshot into an in-memory vector index and
// answers instruction queries with the most relevant pieces of markup.
package retrieval

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"browser-pilot/internal/entity"
)

// Index is built per page snapshot and never reused across instructions.
type Index struct {
	collection *chromem.Collection
}

// BuildIndex embeds chunks into a fresh in-memory collection.
func BuildIndex(ctx context.Context, chunks []Chunk, embed chromem.EmbeddingFunc) (*Index, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection("page", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	if len(chunks) > 0 {
		docs := make([]chromem.Document, 0, len(chunks))
		for _, c := range chunks {
			docs = append(docs, chromem.Document{
				ID:      c.ID,
				Content: c.Content,
				Metadata: map[string]string{
					"tags": strings.Join(c.Tags, ","),
				},
			})
		}
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("index page chunks: %w", err)
		}
	}

	return &Index{collection: collection}, nil
}

func (i *Index) Len() int { return i.collection.Count() }

// Query returns up to topK nodes, most similar first.
func (i *Index) Query(ctx context.Context, query string, topK int) ([]entity.EvidenceNode, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	n := min(topK, i.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := i.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	nodes := make([]entity.EvidenceNode, 0, len(results))
	for _, r := range results {
		nodes = append(nodes, entity.EvidenceNode{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return nodes, nil
}
