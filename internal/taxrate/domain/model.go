package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	sdedomain "github.com/evetools/oretax/internal/sde/domain"
)

// RateScope narrows a rate to a corp or a whole alliance.
type RateScope string

const (
	ScopeAlliance RateScope = "alliance"
	ScopeCorp     RateScope = "corp"
)

// ExemptionScope excludes a single character or a whole corp from taxation.
type ExemptionScope string

const (
	ExemptCharacter ExemptionScope = "character"
	ExemptCorp      ExemptionScope = "corp"
)

// TaxRate is an externally managed percentage rule. The engine only reads
// these rows; the admin surface that edits them lives in the host.
type TaxRate struct {
	ID      snowflake.ID `gorm:"primaryKey"`
	Scope   RateScope    `gorm:"type:text;not null;index:idx_tax_rates_scope"`
	ScopeID int64        `gorm:"column:scope_id;index:idx_tax_rates_scope"`

	Category sdedomain.TaxCategory `gorm:"type:text;not null"`
	Percent  float64               `gorm:"type:numeric(6,3);not null"`

	EffectiveFrom  time.Time  `gorm:"column:effective_from;not null"`
	EffectiveUntil *time.Time `gorm:"column:effective_until"`
	Enabled        bool       `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TaxRate) TableName() string { return "tax_rates" }

// ActiveAt reports whether the rate's effective window covers t.
func (r TaxRate) ActiveAt(t time.Time) bool {
	if !r.Enabled {
		return false
	}
	if t.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveUntil != nil && !t.Before(*r.EffectiveUntil) {
		return false
	}
	return true
}

// Exemption removes a character or corp from taxation for its window.
type Exemption struct {
	ID      snowflake.ID   `gorm:"primaryKey"`
	Scope   ExemptionScope `gorm:"type:text;not null;index:idx_exemptions_scope"`
	ScopeID int64          `gorm:"column:scope_id;not null;index:idx_exemptions_scope"`

	From  time.Time  `gorm:"column:active_from;not null"`
	Until *time.Time `gorm:"column:active_until"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Exemption) TableName() string { return "exemptions" }

func (e Exemption) ActiveAt(t time.Time) bool {
	if t.Before(e.From) {
		return false
	}
	if e.Until != nil && !t.Before(*e.Until) {
		return false
	}
	return true
}
