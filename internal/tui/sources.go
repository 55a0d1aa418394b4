package tui

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"voxrag/internal/domain"
)

var (
	unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe    = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Sources renders retrieved units under the answer, one block per unit, with
// the sentence sharing most words with question highlighted.
func (c *Console) Sources(results []domain.SearchResult, question string) {
	for i, r := range results {
		title := fmt.Sprintf("[%d] %s p.%d  score=%.3f", i+1, filepath.Base(r.Unit.Source), r.Unit.Page, r.Score)
		fmt.Fprintln(c.out, c.dim.Render(title))
		fmt.Fprintln(c.out, highlightBestSentence(r.Unit.Content, question, c.warn.Bold(true).Render))
	}
}

func highlightBestSentence(text, query string, mark func(...string) string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := tokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(trimAll(sentences), " ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(qTokens, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	sentences = trimAll(sentences)
	sentences[best] = mark(sentences[best])
	return strings.Join(sentences, " ")
}

func trimAll(ss []string) []string {
	for i := range ss {
		ss[i] = strings.TrimSpace(ss[i])
	}
	return ss
}

func tokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlap counts distinct sentence words that also occur in the query.
func overlap(query map[string]struct{}, sentence string) int {
	score := 0
	for t := range tokenSet(sentence) {
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}
