// Package prompt assembles the grounded prompt sent to the completion provider.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/services"
)

// SystemPrompt is sent as the system message of every completion
const SystemPrompt = "You are a helpful utility plan comparison assistant."

// Section headers of the reply contract. The parser depends on these exact
// strings, in this order.
const (
	HeaderRecommendation = "RECOMMENDATION:"
	HeaderExplanation    = "EXPLANATION:"
	HeaderMonthlyCost    = "MONTHLY COST:"
	HeaderTradeoffs      = "TRADEOFFS:"
)

// ContextDelimiter separates plan blocks in the prompt context
const ContextDelimiter = "\n\n---\n\n"

// NoPlansContext stands in for the context when retrieval found nothing
const NoPlansContext = "No plans matched this question."

const userTemplate = `You are BillBuddy, an expert assistant helping customers choose the best utility plans.

User Question: %s

Available Plans:
%s

Instructions:
1. Recommend the BEST plan based on the user's needs
2. Explain WHY it's the best choice
3. Mention key tradeoffs or alternatives
4. Provide estimated monthly cost
5. Be specific and cite plan names
6. If information is unclear, ask clarifying questions

Format your response as:
` + HeaderRecommendation + ` [Plan name]
` + HeaderExplanation + ` [Why it's best]
` + HeaderMonthlyCost + ` [Estimate]
` + HeaderTradeoffs + ` [Key considerations, one per line]
`

// Config holds configuration for query validation
type Config struct {
	MaxQueryLength int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxQueryLength: 2000,
	}
}

// Builder renders retrieved plans into a prompt
type Builder struct {
	config Config
}

// NewBuilder creates a new prompt Builder
func NewBuilder(config Config) *Builder {
	if config.MaxQueryLength <= 0 {
		config.MaxQueryLength = DefaultConfig().MaxQueryLength
	}
	return &Builder{config: config}
}

// ValidateQuery trims the query and rejects empty or oversized input
func (b *Builder) ValidateQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", services.NewDomainError(services.ErrorTypeValidation, services.CodeEmptyQuery, "query cannot be empty", nil)
	}
	if n := utf8.RuneCountInString(q); n > b.config.MaxQueryLength {
		return "", services.InvalidArgument(fmt.Sprintf("query too long: maximum %d characters", b.config.MaxQueryLength)).
			WithDetail("length", n)
	}
	return q, nil
}

// Block renders a single plan as a context block
func Block(p *models.Plan) string {
	return fmt.Sprintf("[%s - %s]\n%s\n%s\nFeatures: %s\nBest for: %s",
		p.Provider,
		p.Name,
		p.PriceLabel(),
		p.Description,
		p.Features,
		p.BestFor,
	)
}

// Context joins the plan blocks in rank order
func Context(candidates []models.ScoredPlan) string {
	if len(candidates) == 0 {
		return NoPlansContext
	}
	blocks := make([]string, len(candidates))
	for i := range candidates {
		blocks[i] = Block(&candidates[i].Plan)
	}
	return strings.Join(blocks, ContextDelimiter)
}

// Build returns the user prompt for query grounded on the ranked candidates.
// The candidates appear in the order given, most relevant first.
func (b *Builder) Build(query string, candidates []models.ScoredPlan) string {
	return fmt.Sprintf(userTemplate, query, Context(candidates))
}
