package prompt

import (
	"fmt"
	"strings"

	"github.com/xxxsen/changerisk/internal/model"
)

const (
	KeyChangeSubject     = "change_subject"
	KeyChangeDescription = "change_description"
	KeyChangeRecords     = "change_records"
)

// TemplateError reports a template that cannot be rendered with the supplied
// placeholders.
type TemplateError struct {
	Placeholder string
	Offset      int
	Reason      string
}

func (e *TemplateError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("prompt template: %s %q at offset %d", e.Reason, e.Placeholder, e.Offset)
	}
	return fmt.Sprintf("prompt template: %s at offset %d", e.Reason, e.Offset)
}

// Build fills the analysis template with the new change and the similar
// records, best match first.
func Build(tpl string, change model.ChangeRecord, similar []model.SimilarChange) (string, error) {
	return Render(tpl, map[string]string{
		KeyChangeSubject:     change.Subject,
		KeyChangeDescription: change.Description,
		KeyChangeRecords:     RenderSimilar(similar),
	})
}

// Validate checks that tpl only references the placeholders Build supplies.
func Validate(tpl string) error {
	_, err := Build(tpl, model.ChangeRecord{}, nil)
	return err
}

// Render substitutes {name} placeholders from vars. "{{" and "}}" produce
// literal braces. Unknown names and unbalanced braces are errors.
func Render(tpl string, vars map[string]string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(tpl))
	for i := 0; i < len(tpl); i++ {
		ch := tpl[i]
		switch ch {
		case '{':
			if i+1 < len(tpl) && tpl[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return "", &TemplateError{Offset: i, Reason: "unclosed '{'"}
			}
			name := tpl[i+1 : i+1+end]
			if strings.ContainsRune(name, '{') {
				return "", &TemplateError{Offset: i, Reason: "nested '{'"}
			}
			value, ok := vars[strings.TrimSpace(name)]
			if !ok {
				return "", &TemplateError{Placeholder: name, Offset: i, Reason: "unknown placeholder"}
			}
			sb.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(tpl) && tpl[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", &TemplateError{Offset: i, Reason: "single '}'"}
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String(), nil
}

// RenderSimilar renders the retrieved records as numbered blocks. No records
// render as the empty string.
func RenderSimilar(similar []model.SimilarChange) string {
	if len(similar) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(similar))
	for i, item := range similar {
		blocks = append(blocks, fmt.Sprintf("[%d] %s (similarity %.3f)\nChange Subject: %s\nChange description: %s",
			i+1, item.Record.ID, item.Score, item.Record.Subject, item.Record.Description))
	}
	return strings.Join(blocks, "\n\n")
}
