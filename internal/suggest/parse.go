package suggest

import (
	"fmt"
	"regexp"
	"strings"
)

// bulletPattern matches "-", "・", "*" or a number followed by ".", "．", "、" or ")".
var bulletPattern = regexp.MustCompile(`^(?:-|・|\*|\d+[.．、)])\s*`)

// Parse extracts bullet items from generator output. Lines without a
// recognised bullet are ignored.
func Parse(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		loc := bulletPattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		item := strings.TrimSpace(line[loc[1]:])
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// Validate rejects empty, short or duplicated suggestion lists.
func Validate(items []string, minCount int) error {
	if len(items) == 0 {
		return failed("no bullet lines in response", nil)
	}
	if minCount > 0 && len(items) < minCount {
		return failed(fmt.Sprintf("expected at least %d suggestions, got %d", minCount, len(items)), nil)
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		key := normalize(item)
		if seen[key] {
			return failed(fmt.Sprintf("duplicate suggestion %q", item), nil)
		}
		seen[key] = true
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
