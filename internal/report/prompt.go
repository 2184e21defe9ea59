package report

import (
	"fmt"
	"strings"

	"stockbrief/internal/types"
)

// SearchQuery is the fixed web search query for a symbol.
func SearchQuery(symbol string) string {
	return symbol + " stock business model revenue competitive advantage risks competitors analysis financial report"
}

// VariantFor picks the instruction template. Only pro accounts receive the
// unrestricted memo.
func VariantFor(plan types.PlanTier) types.PromptVariant {
	if plan == types.PlanPro {
		return types.PromptInstitutionalMemo
	}
	return types.PromptResearchBrief
}

// FormatSearchContext renders results as an enumerated list. Source and date
// are included when present.
func FormatSearchContext(results []types.SearchResult) string {
	if len(results) == 0 {
		return "(no search results)"
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[%d] Title: %s\n", i+1, r.Title)
		if r.Source != "" || r.Date != "" {
			date := r.Date
			if date == "" {
				date = "recent"
			}
			fmt.Fprintf(&b, "Source: %s (%s)\n", r.Source, date)
		}
		fmt.Fprintf(&b, "Snippet: %s", r.Snippet)
		if r.Link != "" {
			fmt.Fprintf(&b, "\nLink: %s", r.Link)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// BuildPrompt assembles the model prompt for symbol.
func BuildPrompt(variant types.PromptVariant, symbol string, results []types.SearchResult) string {
	var b strings.Builder
	b.WriteString("Read the following search results:\n\n")
	b.WriteString(FormatSearchContext(results))
	b.WriteString("\n\n")

	switch variant {
	case types.PromptInstitutionalMemo:
		fmt.Fprintf(&b, institutionalMemo, symbol)
	default:
		fmt.Fprintf(&b, researchBrief, symbol)
	}
	b.WriteString(outputFormat)
	return b.String()
}

const researchBrief = `Using the search results above, write an educational company overview of "%s" in Traditional Chinese.

Rules:
- Describe what the company does, how it makes money, its competitive position and its key risks.
- Do NOT give a valuation, fair value, price target, rating, or any buy, sell, or hold language.
- Do NOT cite result numbers or write disclaimers about the search results.
`

const institutionalMemo = `Using the search results above, write a full institutional research memo on "%s" in Traditional Chinese, in the voice of a senior sell-side analyst.

Rules:
- Cover the business model, product strategy, competitive moat, main competitors, market strategy, the three most material risks, and management.
- Where data is thin, reason from the company's public behaviour, product history and competitive dynamics.
- Do NOT cite result numbers or write disclaimers about the search results.
`

const outputFormat = `
Format:
- Top-level headings use "# ", subheadings use "## ".
- Emphasize key terms in **bold**.
- Use standard Markdown tables for product lines and competitors.
`
