// Package parser extracts a structured recommendation from a model reply.
//
// Parsing is best effort: any input produces a Result. Sections the model left
// out come back empty and mark the result as degraded; nothing here returns an error.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/upb/billbuddy/services/prompt"
)

// Outcome tells callers whether every section of the reply was recovered
type Outcome int

const (
	// OutcomeOK means all four sections and a numeric cost were found
	OutcomeOK Outcome = iota
	// OutcomeDegraded means at least one section or the cost is missing
	OutcomeDegraded
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Section names reported in Result.Missing
const (
	SectionRecommendation = "recommendation"
	SectionExplanation    = "explanation"
	SectionMonthlyCost    = "monthlyCost"
	SectionTradeoffs      = "tradeoffs"
)

// Result is the structured form of a model reply
type Result struct {
	Recommendation string
	Explanation    string
	// CostText is the raw MONTHLY COST section
	CostText string
	// Cost is the first amount found in CostText, nil when there is none
	Cost      *float64
	Tradeoffs []string
	Outcome   Outcome
	// Missing names the sections that could not be recovered
	Missing []string
}

var (
	// header lines decorated with markdown, e.g. "**RECOMMENDATION:**" or "## EXPLANATION**:"
	decoratedHeader = regexp.MustCompile(`(?m)^[ \t]*(?:#{1,6}[ \t]*)?\*{0,2}([A-Z][A-Z ]*[A-Z])\*{0,2}:\*{0,2}`)

	// start of the next header-like token
	nextHeader = regexp.MustCompile(`\n[ \t]*[A-Z][A-Z ]*:`)

	// optional currency symbol then an amount, with optional thousands separators
	amount = regexp.MustCompile(`[$€£¥]?\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`)

	// leading list marker on a tradeoff line: "-", "*", "•", "1." or "1)"
	bullet = regexp.MustCompile(`^(?:[-*•]\s*|\d+[.)]\s+)`)
)

// Parse extracts the four reply sections from raw
func Parse(raw string) Result {
	text := normalize(raw)

	costText := Section(text, prompt.HeaderMonthlyCost)
	res := Result{
		Recommendation: Section(text, prompt.HeaderRecommendation),
		Explanation:    Section(text, prompt.HeaderExplanation),
		CostText:       costText,
		Cost:           ExtractCost(costText),
		Tradeoffs:      SplitTradeoffs(Section(text, prompt.HeaderTradeoffs)),
	}

	if res.Recommendation == "" {
		res.Missing = append(res.Missing, SectionRecommendation)
	}
	if res.Explanation == "" {
		res.Missing = append(res.Missing, SectionExplanation)
	}
	if res.Cost == nil {
		res.Missing = append(res.Missing, SectionMonthlyCost)
	}
	if len(res.Tradeoffs) == 0 {
		res.Missing = append(res.Missing, SectionTradeoffs)
	}

	if len(res.Missing) > 0 {
		res.Outcome = OutcomeDegraded
	}
	return res
}

func normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	return decoratedHeader.ReplaceAllString(text, "$1:")
}

// Section returns the trimmed text after header up to the next header-like
// token or the end of text. A missing header yields "".
func Section(text, header string) string {
	i := strings.Index(text, header)
	if i < 0 {
		return ""
	}
	rest := text[i+len(header):]
	if loc := nextHeader.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return strings.TrimSpace(rest)
}

// ExtractCost returns the first amount in text, or nil when there is none
func ExtractCost(text string) *float64 {
	m := amount.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

// SplitTradeoffs splits a tradeoffs section into one item per non-blank line,
// with list markers removed. An empty section yields an empty, non-nil slice.
func SplitTradeoffs(section string) []string {
	items := []string{}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(bullet.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
