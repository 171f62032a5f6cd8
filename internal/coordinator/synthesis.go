package coordinator

import (
	"fmt"
	"strings"

	"github.com/mwhitfield/loom/pkg/models"
)

// lowConfidence marks worker answers worth double-checking.
const lowConfidence = 0.5

// synthesize folds the per-worker results into one response. A single
// result passes through verbatim; multiple results get per-worker sections
// plus a coordination summary and cross-worker observations.
func synthesize(sel Selection, results map[string]*models.WorkerResult) string {
	if len(results) == 1 {
		for _, res := range results {
			return res.Content
		}
	}

	var b strings.Builder

	// Sections follow selection order so output is stable across runs.
	for _, w := range sel.Workers {
		res, ok := results[w.Name()]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "## %s (%s)\n\n", w.Name(), w.Role())
		b.WriteString(strings.TrimSpace(res.Content))
		b.WriteString("\n")
		if len(res.Suggestions) > 0 {
			b.WriteString("\nSuggestions:\n")
			for _, sug := range res.Suggestions {
				fmt.Fprintf(&b, "- %s\n", sug)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "Coordination: %d workers, %s topology (confidence %.2f).\n", len(results), sel.Topology, sel.Confidence)
	fmt.Fprintf(&b, "Selection: %s.\n", sel.Reasoning)

	ordered := make([]*models.WorkerResult, 0, len(results))
	for _, w := range sel.Workers {
		if res, ok := results[w.Name()]; ok {
			ordered = append(ordered, res)
		}
	}
	if agreed := agreementPoints(ordered); len(agreed) > 0 {
		b.WriteString("\nAgreement across workers:\n")
		for _, point := range agreed {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}

	var shaky []string
	for _, w := range sel.Workers {
		if res, ok := results[w.Name()]; ok && res.Confidence < lowConfidence {
			shaky = append(shaky, w.Name())
		}
	}
	if len(shaky) > 0 {
		fmt.Fprintf(&b, "\nLow-confidence answers from %s; verify before applying.\n", strings.Join(shaky, ", "))
	}

	if countCodeResults(results) > 1 {
		b.WriteString("\nMultiple workers proposed code changes; review them together for compatibility.\n")
	}

	return strings.TrimSpace(b.String())
}

// agreementPoints lists suggestions raised by more than one worker,
// normalized for case and surrounding whitespace. Input must be in a stable
// order so the output is too.
func agreementPoints(results []*models.WorkerResult) []string {
	counts := make(map[string]int)
	first := make(map[string]string)
	var order []string

	for _, res := range results {
		seen := make(map[string]bool, len(res.Suggestions))
		for _, sug := range res.Suggestions {
			key := strings.ToLower(strings.TrimSpace(sug))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if counts[key] == 0 {
				first[key] = strings.TrimSpace(sug)
				order = append(order, key)
			}
			counts[key]++
		}
	}

	var agreed []string
	for _, key := range order {
		if counts[key] > 1 {
			agreed = append(agreed, first[key])
		}
	}
	return agreed
}

func countCodeResults(results map[string]*models.WorkerResult) int {
	n := 0
	for _, res := range results {
		if strings.Contains(res.Content, "```") {
			n++
		}
	}
	return n
}
