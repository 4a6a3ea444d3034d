package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the kind of service a plan covers
type Category string

const (
	CategoryInternet Category = "INTERNET"
	CategoryMobile   Category = "MOBILE"
	CategoryEnergy   Category = "ENERGY"
)

// seedNamespace scopes deterministic plan ids derived from provider and plan name
var seedNamespace = uuid.MustParse("6f1c7c2e-5b8e-4d0a-9a51-3c6f2f0d8b41")

// ParseCategory normalizes a category name. Unknown non-empty names are accepted
// as-is (upper-cased) so new categories can be ingested without a code change.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c == "" {
		return "", fmt.Errorf("category is required")
	}
	return c, nil
}

// Embedding is a dense vector produced by an embedding provider
type Embedding []float64

// Dim returns the dimensionality of the vector
func (e Embedding) Dim() int {
	return len(e)
}

// Plan is a single utility/service plan record
type Plan struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Category       Category  `json:"category" db:"category" validate:"required"`
	Provider       string    `json:"provider" db:"provider" validate:"required"`
	Name           string    `json:"name" db:"name" validate:"required"`
	Description    string    `json:"description" db:"description"`
	MonthlyPrice   *float64  `json:"monthlyPrice,omitempty" db:"monthly_price" validate:"omitempty,gte=0"`
	DataLimit      *string   `json:"dataLimit,omitempty" db:"data_limit"`
	Speed          *string   `json:"speed,omitempty" db:"speed"`
	ContractLength string    `json:"contractLength" db:"contract_length"`
	Features       string    `json:"features" db:"features"`
	Limitations    string    `json:"limitations" db:"limitations"`
	BestFor        string    `json:"bestFor" db:"best_for"`

	// Embedding is nil until the plan has been indexed
	Embedding Embedding  `json:"-" db:"embedding"`
	IndexedAt *time.Time `json:"indexedAt,omitempty" db:"indexed_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// TableName returns the table name for the Plan model
func (Plan) TableName() string {
	return "plans"
}

// NewPlan creates a plan with a deterministic id derived from provider and name,
// so re-ingesting the same plan updates the existing record instead of adding one.
func NewPlan(category Category, provider, name string) *Plan {
	now := time.Now()
	return &Plan{
		ID:        PlanID(provider, name),
		Category:  category,
		Provider:  provider,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PlanID returns the deterministic id for a provider/name pair
func PlanID(provider, name string) uuid.UUID {
	key := strings.ToLower(strings.TrimSpace(provider)) + "/" + strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(seedNamespace, []byte(key))
}

// PriceLabel renders the monthly price to two decimals, or "Price: not listed"
func (p *Plan) PriceLabel() string {
	if p.MonthlyPrice == nil {
		return "Price: not listed"
	}
	return fmt.Sprintf("Price: $%.2f/month", *p.MonthlyPrice)
}

// IsIndexed reports whether the plan carries an embedding
func (p *Plan) IsIndexed() bool {
	return len(p.Embedding) > 0
}

// SetEmbedding attaches an embedding and stamps the index time
func (p *Plan) SetEmbedding(vec Embedding) {
	now := time.Now()
	p.Embedding = vec
	p.IndexedAt = &now
	p.UpdatedAt = now
}

// Clone returns a deep copy of the plan
func (p *Plan) Clone() *Plan {
	c := *p
	if p.Embedding != nil {
		c.Embedding = append(Embedding(nil), p.Embedding...)
	}
	if p.MonthlyPrice != nil {
		v := *p.MonthlyPrice
		c.MonthlyPrice = &v
	}
	if p.DataLimit != nil {
		v := *p.DataLimit
		c.DataLimit = &v
	}
	if p.Speed != nil {
		v := *p.Speed
		c.Speed = &v
	}
	if p.IndexedAt != nil {
		v := *p.IndexedAt
		c.IndexedAt = &v
	}
	return &c
}

// ScoredPlan pairs a plan with its similarity to a query
type ScoredPlan struct {
	Plan  Plan
	Score float64
}

// CreatePlanRequest is the input for ingesting a plan, over HTTP or from a seed file
type CreatePlanRequest struct {
	Category       string   `json:"category" yaml:"category" validate:"required"`
	Provider       string   `json:"provider" yaml:"provider" validate:"required,max=255"`
	Name           string   `json:"name" yaml:"name" validate:"required,max=255"`
	Description    string   `json:"description" yaml:"description"`
	MonthlyPrice   *float64 `json:"monthlyPrice,omitempty" yaml:"monthlyPrice" validate:"omitempty,gte=0"`
	DataLimit      *string  `json:"dataLimit,omitempty" yaml:"dataLimit" validate:"omitempty,max=100"`
	Speed          *string  `json:"speed,omitempty" yaml:"speed" validate:"omitempty,max=100"`
	ContractLength string   `json:"contractLength" yaml:"contractLength" validate:"max=100"`
	Features       string   `json:"features" yaml:"features"`
	Limitations    string   `json:"limitations" yaml:"limitations"`
	BestFor        string   `json:"bestFor" yaml:"bestFor"`
}

// ToPlan builds an unindexed plan from the request
func (r *CreatePlanRequest) ToPlan() (*Plan, error) {
	category, err := ParseCategory(r.Category)
	if err != nil {
		return nil, err
	}
	p := NewPlan(category, strings.TrimSpace(r.Provider), strings.TrimSpace(r.Name))
	p.Description = r.Description
	p.MonthlyPrice = r.MonthlyPrice
	p.DataLimit = r.DataLimit
	p.Speed = r.Speed
	p.ContractLength = r.ContractLength
	p.Features = r.Features
	p.Limitations = r.Limitations
	p.BestFor = r.BestFor
	return p, nil
}
