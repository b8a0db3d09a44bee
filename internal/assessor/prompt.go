package assessor

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/questions"
)

// PromptHeader holds the writeup instructions. The rating lines are
// appended after it at runtime.
//
//go:embed prompts/assessment.md
var PromptHeader string

// BuildPrompt renders the single user message sent to the model. Questions
// appear in questionnaire order; ratings for IDs the questionnaire does not
// know are listed afterwards in sorted order.
func BuildPrompt(set *questions.Set, ratings model.RatingSet) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(PromptHeader, "\n"))
	b.WriteString("\n")

	for _, q := range set.Items() {
		v, ok := ratings[q.ID]
		if !ok {
			continue
		}
		b.WriteString(formatRating(q, v))
		b.WriteString("\n")
	}

	var unknown []string
	for id := range ratings {
		if _, ok := set.Get(id); !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		fmt.Fprintf(&b, "- %s: %d (Question text not found)\n", id, ratings[id])
	}
	return b.String()
}

func formatRating(q model.Question, v int) string {
	return fmt.Sprintf("- Question: \"%s\" (Rated: %d on a scale of %d-%d, where %d means '%s' and %d means '%s')",
		q.Statement, v, q.Min, q.Max, q.Min, q.MinAnchor, q.Max, q.MaxAnchor)
}
