// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"sort"
	"strings"

	"github.com/pdiddy/image-engine/internal/rank"
	"github.com/pdiddy/image-engine/pkg/types"
)

// Rerank reorders records by BM25 relevance of their text to the query.
// Each record's document is its alt text, caption, and any detected
// object labels, so annotation should run before reranking. The BM25
// score is normalized to (0, 1] and blended equally with the provider
// position score already on each record. Records whose text never
// mentions the query keep their position score alone, so provider
// ordering still breaks ties.
func Rerank(query string, records []types.ImageRecord) []types.ImageRecord {
	if query == "" || len(records) < 2 {
		return records
	}

	docs := make([]string, len(records))
	for i, r := range records {
		doc := r.AltText + " " + r.Caption
		if len(r.DetectedObjects) > 0 {
			doc += " " + strings.Join(r.DetectedObjects, " ")
		}
		docs[i] = strings.TrimSpace(doc)
	}

	ix := rank.Build(docs)
	scores := ix.Score(query, rank.DefaultK1, rank.DefaultB)
	if len(scores) == 0 {
		return records
	}

	maxScore := scores[0].Score
	byDoc := make(map[int]float64, len(scores))
	for _, s := range scores {
		byDoc[s.DocID] = s.Score
	}

	for i := range records {
		if bm25, ok := byDoc[i]; ok && maxScore > 0 {
			records[i].RelevanceScore = 0.5*records[i].RelevanceScore + 0.5*(bm25/maxScore)
		} else {
			records[i].RelevanceScore *= 0.5
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RelevanceScore > records[j].RelevanceScore
	})
	return records
}
