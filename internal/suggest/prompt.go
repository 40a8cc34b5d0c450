package suggest

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("subtasks").Parse(`You are an assistant for a to-do list.
Suggest exactly {{.Count}} subtasks that are needed to accomplish the parent task below.

Parent task: {{.Title}}
{{- if .Description}}
Details: {{.Description}}
{{- end}}

Each subtask must be practical and concrete, start with an action verb, and state its purpose.
Output a bulleted list, not prose.
Do not include obscene language, anything that encourages crime, or anything that arranges harmful acts.
Do not output subtasks with the same meaning.

Use exactly this format (every line must start with "- "):
{{range .Lines}}
- subtask {{.}}
{{- end}}`))

// BuildPrompt renders the instruction sent to the text generator.
func BuildPrompt(title, description string, count int) (string, error) {
	if count <= 0 {
		count = DefaultCount
	}
	lines := make([]int, count)
	for i := range lines {
		lines[i] = i + 1
	}

	var b strings.Builder
	err := promptTemplate.Execute(&b, struct {
		Title       string
		Description string
		Count       int
		Lines       []int
	}{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Count:       count,
		Lines:       lines,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
