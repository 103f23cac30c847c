package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
)

const blockSeparator = "\n---\n"

// formatBlock renders one candidate for the model.
func formatBlock(c candidate.Candidate) string {
	return fmt.Sprintf("Title: %s\nSummary: %s\nTags: %s\nRelevance: %.3f",
		c.Title, c.Summary, strings.Join(c.Tags, ", "), c.Similarity)
}

// BuildContext packs candidates in input order into at most maxChars runes,
// separators included. It stops at the first block that does not fit; since
// input is relevance-descending, only the least relevant tail is dropped.
// An empty string means nothing fit.
func BuildContext(cs []candidate.Candidate, maxChars int) string {
	var b strings.Builder
	used := 0
	for i, c := range cs {
		block := formatBlock(c)
		cost := utf8.RuneCountInString(block)
		if i > 0 {
			cost += utf8.RuneCountInString(blockSeparator)
		}
		if used+cost > maxChars {
			break
		}
		if i > 0 {
			b.WriteString(blockSeparator)
		}
		b.WriteString(block)
		used += cost
	}
	return b.String()
}
