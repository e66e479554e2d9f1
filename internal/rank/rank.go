// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank builds an in-memory inverted index over image metadata and
// scores documents against a query with BM25.
package rank

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 tuning constants. Standard values for short metadata documents.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Index is an inverted index with per-document term frequencies.
type Index struct {
	// postings maps term → document ID → term frequency.
	postings map[string]map[int]int

	// docLengths maps document ID → token count.
	docLengths map[int]int

	totalDocs int
	avgDocLen float64
}

// DocScore pairs a document ID with its BM25 score.
type DocScore struct {
	DocID int
	Score float64
}

// Tokenize lowercases text and splits it on whitespace, keeping only
// tokens made entirely of letters and digits.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := fields[:0]
	for _, f := range fields {
		if isAlnum(f) {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Build constructs an index over the given documents. The document ID is
// the slice position.
func Build(docs []string) *Index {
	ix := &Index{
		postings:   make(map[string]map[int]int),
		docLengths: make(map[int]int),
		totalDocs:  len(docs),
	}

	totalLen := 0
	for docID, doc := range docs {
		tokens := Tokenize(doc)
		ix.docLengths[docID] = len(tokens)
		totalLen += len(tokens)

		for _, term := range tokens {
			if ix.postings[term] == nil {
				ix.postings[term] = make(map[int]int)
			}
			ix.postings[term][docID]++
		}
	}

	if len(docs) > 0 {
		ix.avgDocLen = float64(totalLen) / float64(len(docs))
	} else {
		ix.avgDocLen = 1
	}

	return ix
}

// Terms returns the number of distinct terms in the index.
func (ix *Index) Terms() int { return len(ix.postings) }

// Score ranks all documents matching the query with BM25 (k1, b as given;
// zero values select the defaults). idf uses the Robertson-Sparck Jones
// form with +1 inside the log so it never goes negative. Documents are
// returned in descending score order, ties broken by document ID.
func (ix *Index) Score(query string, k1, b float64) []DocScore {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}

	scores := make(map[int]float64)
	for _, term := range Tokenize(query) {
		postings, ok := ix.postings[term]
		if !ok {
			continue
		}

		df := float64(len(postings))
		n := float64(ix.totalDocs)
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)

		for docID, tf := range postings {
			docLen := float64(ix.docLengths[docID])
			norm := (float64(tf) * (k1 + 1)) /
				(float64(tf) + k1*(1-b+b*(docLen/ix.avgDocLen)))
			scores[docID] += idf * norm
		}
	}

	ranked := make([]DocScore, 0, len(scores))
	for docID, score := range scores {
		ranked = append(ranked, DocScore{DocID: docID, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DocID < ranked[j].DocID
	})
	return ranked
}
