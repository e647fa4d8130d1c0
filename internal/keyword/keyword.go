// Package keyword is the degraded fallback search path: a small in-memory
// inverted index with field boosts and prefix matching, used when the
// semantic pipeline is disabled or fails for a request.
package keyword

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hannadev/blogsearch/internal/corpus"
)

// Field boosts, heaviest first. Content matches score 1.
const (
	titleBoost       = 4.0
	tagsBoost        = 2.0
	descriptionBoost = 1.5
)

const excerptRunes = 200

// Hit is a scored keyword match.
type Hit struct {
	Doc     corpus.Document
	Score   float64
	Excerpt string
}

type indexedDoc struct {
	doc     corpus.Document
	title   []string
	tags    []string
	desc    []string
	content []string
	excerpt string
}

// Index is an immutable in-memory keyword index over the corpus.
type Index struct {
	docs []indexedDoc
}

// NewIndex tokenizes the documents once up front.
func NewIndex(docs []corpus.Document) *Index {
	indexed := make([]indexedDoc, 0, len(docs))
	for _, doc := range docs {
		indexed = append(indexed, indexedDoc{
			doc:     doc,
			title:   tokenize(doc.Title + " " + doc.TitleEn),
			tags:    tokenize(strings.Join(doc.Tags, " ")),
			desc:    tokenize(doc.Description),
			content: tokenize(doc.Content),
			excerpt: excerpt(doc.Content),
		})
	}
	return &Index{docs: indexed}
}

// Size returns the number of indexed documents.
func (idx *Index) Size() int {
	return len(idx.docs)
}

// Search scores every document against the query terms and returns matches
// sorted by score descending. Query terms match tokens exactly or as a
// prefix (prefix matches score half).
func (idx *Index) Search(query string) []Hit {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	var hits []Hit
	for _, d := range idx.docs {
		var score float64
		for _, term := range terms {
			score += titleBoost * matchScore(term, d.title)
			score += tagsBoost * matchScore(term, d.tags)
			score += descriptionBoost * matchScore(term, d.desc)
			score += matchScore(term, d.content)
		}
		if score > 0 {
			hits = append(hits, Hit{Doc: d.doc, Score: score, Excerpt: d.excerpt})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits
}

// matchScore returns 1 for an exact token match, 0.5 for a prefix match,
// 0 otherwise.
func matchScore(term string, tokens []string) float64 {
	score := 0.0
	for _, token := range tokens {
		switch {
		case token == term:
			return 1
		case strings.HasPrefix(token, term):
			score = 0.5
		}
	}
	return score
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// excerpt returns the first excerptRunes runes of the body, on a rune
// boundary so multibyte text is never split.
func excerpt(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= excerptRunes {
		return content
	}
	return string(runes[:excerptRunes]) + "…"
}
