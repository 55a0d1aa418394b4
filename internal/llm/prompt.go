package llm

import (
	"fmt"
	"strings"

	"voxrag/internal/domain"
)

// Template is a prompt with {context} and {input} placeholders.
type Template struct {
	text string
}

// ParseTemplate checks that both placeholders are present.
func ParseTemplate(text string) (Template, error) {
	if !strings.Contains(text, "{context}") || !strings.Contains(text, "{input}") {
		return Template{}, fmt.Errorf("%w: template must contain {context} and {input}", domain.ErrConfiguration)
	}
	return Template{text: text}, nil
}

// Render substitutes the placeholders. Substituted values are not re-scanned.
func (t Template) Render(context, input string) string {
	return strings.NewReplacer("{context}", context, "{input}", input).Replace(t.text)
}

// JoinContext concatenates retrieved unit contents, separated by blank lines.
func JoinContext(results []domain.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Unit.Content)
	}
	return strings.Join(parts, "\n\n")
}

// StripRole removes a leading "Assistant:" the model sometimes echoes back.
func StripRole(text string) string {
	trimmed := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(trimmed, "Assistant:"); ok {
		return strings.TrimSpace(rest)
	}
	return trimmed
}
