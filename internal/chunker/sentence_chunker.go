package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SentenceChunker groups sentences into blocks of at most maxChars runes,
// repeating the last overlapSentences sentences at the start of the next block.
// A single sentence longer than maxChars becomes its own block.
type SentenceChunker struct {
	maxChars         int
	overlapSentences int
	splitter         *regexp.Regexp
	spaces           *regexp.Regexp
}

func NewSentenceChunker(maxChars, overlapSentences int) *SentenceChunker {
	if maxChars <= 0 {
		maxChars = 4000
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	return &SentenceChunker{
		maxChars:         maxChars,
		overlapSentences: overlapSentences,
		splitter:         regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
		spaces:           regexp.MustCompile(`\s+`),
	}
}

// Split returns the non-empty blocks of text in reading order.
func (c *SentenceChunker) Split(text string) []string {
	text = strings.TrimSpace(c.spaces.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.maxChars {
		return []string{text}
	}
	var sentences []string
	for _, s := range c.splitter.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return []string{text}
	}

	var blocks []string
	i := 0
	for i < len(sentences) {
		end := i
		size := 0
		for end < len(sentences) {
			add := utf8.RuneCountInString(sentences[end])
			if end > i {
				add++
			}
			if end > i && size+add > c.maxChars {
				break
			}
			size += add
			end++
		}
		blocks = append(blocks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		next := end - c.overlapSentences
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return blocks
}
