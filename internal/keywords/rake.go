package keywords

import (
	"context"
	_ "embed"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// MaxKeywords is the most keywords any extractor returns.
const MaxKeywords = 10

//go:embed common_words.txt
var commonWordsRaw string

var (
	commonWords = func() map[string]struct{} {
		m := make(map[string]struct{})
		for _, w := range strings.Fields(commonWordsRaw) {
			m[w] = struct{}{}
		}
		return m
	}()

	urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)
	// Phrase boundaries; stopwords split phrases too.
	punctPattern = regexp.MustCompile(`[.,;:!?()\[\]{}"/|\n\t]+`)
)

// Rake is a local keyword extractor.
//
// Candidate phrases are runs of words between punctuation and common words.
// Only single-word candidates are kept, stripped of non-letters and dropped
// when they're an everyday English word. Results rank by how often the word
// occurs, then by first appearance.
type Rake struct{}

func (Rake) Extract(_ context.Context, text string) ([]string, error) {
	text = urlPattern.ReplaceAllString(text, " ")

	type candidate struct {
		word  string
		count int
		first int
	}
	seen := make(map[string]*candidate)
	var order []*candidate

	for _, fragment := range punctPattern.Split(text, -1) {
		for _, phrase := range splitOnCommon(strings.Fields(fragment)) {
			if len(phrase) != 1 {
				continue
			}

			word := lettersOnly(phrase[0])
			lower := strings.ToLower(word)
			if len(word) < 2 {
				continue
			}
			if _, ok := commonWords[lower]; ok {
				continue
			}

			if c, ok := seen[lower]; ok {
				c.count++
				continue
			}
			c := &candidate{word: word, count: 1, first: len(order)}
			seen[lower] = c
			order = append(order, c)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	var kws []string
	for _, c := range order {
		if len(kws) == MaxKeywords {
			break
		}
		kws = append(kws, c.word)
	}

	return kws, nil
}

// splitOnCommon breaks words into phrases wherever a common word appears.
func splitOnCommon(words []string) [][]string {
	var (
		phrases [][]string
		cur     []string
	)
	for _, w := range words {
		if _, ok := commonWords[strings.ToLower(lettersOnly(w))]; ok {
			if len(cur) > 0 {
				phrases = append(phrases, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, w)
	}
	if len(cur) > 0 {
		phrases = append(phrases, cur)
	}

	return phrases
}

func lettersOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, s)
}
