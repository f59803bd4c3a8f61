package report

import (
	"fmt"
	"strings"

	"github.com/menta2k/rock-classifier/pkg/client"
	"github.com/menta2k/rock-classifier/pkg/types"
)

// Fields are the four values requested by the rock prompt.
type Fields struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Confidence  string `json:"confidence"`
}

// ParseFields extracts the labeled fields from model text. It is best-effort:
// callers keep the raw text as the authoritative result and treat a ParseError
// as "no structured view available".
func ParseFields(text string) (*Fields, error) {
	values := map[string]string{}
	current := ""

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if line == "" {
			continue
		}

		if label, rest, ok := matchLabel(line); ok {
			current = label
			values[label] = strings.TrimSpace(rest)
			continue
		}
		// continuation of a multi-line value
		if current != "" {
			values[current] = strings.TrimSpace(values[current] + " " + line)
		}
	}

	var missing []string
	for _, label := range client.FieldLabels {
		if values[label] == "" {
			missing = append(missing, strings.TrimSuffix(label, ":"))
		}
	}
	if len(missing) > 0 {
		return nil, types.NewParseError("fields", fmt.Errorf("missing fields: %s", strings.Join(missing, ", ")))
	}

	return &Fields{
		Name:        values[client.LabelName],
		Type:        values[client.LabelType],
		Description: values[client.LabelDesc],
		Confidence:  values[client.LabelConfidence],
	}, nil
}

func matchLabel(line string) (string, string, bool) {
	for _, label := range client.FieldLabels {
		if strings.HasPrefix(line, label) {
			return label, strings.TrimPrefix(line, label), true
		}
	}
	return "", "", false
}
