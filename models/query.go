package models

// DefaultMaxResults is the number of plans retrieved when a request does not say
const DefaultMaxResults = 5

// QueryRequest is a natural-language question about which plan fits best
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty" validate:"omitempty,max=128"`
	// MaxResults is K; nil means DefaultMaxResults
	MaxResults *int `json:"maxResults,omitempty"`
}

// ResultCount returns the requested K, or def when the request leaves it unset
func (r *QueryRequest) ResultCount(def int) int {
	if r.MaxResults == nil {
		return def
	}
	return *r.MaxResults
}

// Citation points back at a plan that was sent to the model as context
type Citation struct {
	Provider       string  `json:"provider"`
	PlanName       string  `json:"planName"`
	RelevantText   string  `json:"relevantText"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// NewCitation projects a scored plan into a citation
func NewCitation(sp ScoredPlan) Citation {
	return Citation{
		Provider:       sp.Plan.Provider,
		PlanName:       sp.Plan.Name,
		RelevantText:   sp.Plan.Description,
		RelevanceScore: sp.Score,
	}
}

// QueryResponse is the structured recommendation returned to the caller.
// Every field except EstimatedMonthlyCost is always present, possibly empty.
type QueryResponse struct {
	Recommendation       string     `json:"recommendation"`
	Explanation          string     `json:"explanation"`
	EstimatedMonthlyCost *float64   `json:"estimatedMonthlyCost"`
	Tradeoffs            []string   `json:"tradeoffs"`
	Citations            []Citation `json:"citations"`
	SessionID            string     `json:"sessionId"`
	ProcessingTimeMs     int64      `json:"processingTimeMs"`

	// Degraded is set when the model reply could not be fully parsed
	Degraded bool `json:"degraded,omitempty"`
}
