package classifier

import (
	"regexp"
	"sort"
	"strings"
)

// tokenPattern matches runs of two or more word characters; single letters
// such as the "t" in "t-shirt" are dropped.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Vectorizer turns text into bag-of-words term counts over a fixed
// vocabulary.
type Vectorizer struct {
	Lowercase  bool           `json:"lowercase"`
	Vocabulary map[string]int `json:"vocabulary"`
}

// NewVectorizer returns an unfitted, lowercasing vectorizer.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{Lowercase: true}
}

// Tokenize splits doc into vocabulary candidates.
func (v *Vectorizer) Tokenize(doc string) []string {
	if v.Lowercase {
		doc = strings.ToLower(doc)
	}
	return tokenPattern.FindAllString(doc, -1)
}

// Fit builds the vocabulary from docs. Terms are indexed in alphabetical
// order so the same corpus always yields the same feature layout.
func (v *Vectorizer) Fit(docs []string) {
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for _, tok := range v.Tokenize(doc) {
			seen[tok] = struct{}{}
		}
	}

	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v.Vocabulary = make(map[string]int, len(terms))
	for i, t := range terms {
		v.Vocabulary[t] = i
	}
}

// Transform returns the sparse term-count vector of doc. Unknown terms are
// ignored.
func (v *Vectorizer) Transform(doc string) SparseVector {
	vec := make(SparseVector)
	for _, tok := range v.Tokenize(doc) {
		if idx, ok := v.Vocabulary[tok]; ok {
			vec[idx]++
		}
	}
	return vec
}

// Features returns the vocabulary size.
func (v *Vectorizer) Features() int {
	return len(v.Vocabulary)
}

// SparseVector maps feature index to value.
type SparseVector map[int]float64
