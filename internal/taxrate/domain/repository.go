package domain

import (
	"context"
	"time"

	sdedomain "github.com/evetools/oretax/internal/sde/domain"
)

type Repository interface {
	// FindRate returns the first enabled rate active at asOf for the exact
	// scope and category, or nil. Ordering is by id, so ties between
	// overlapping rows resolve first-found.
	FindRate(ctx context.Context, scope RateScope, scopeID int64, category sdedomain.TaxCategory, asOf time.Time) (*TaxRate, error)

	// ActiveExemptions returns exemptions whose window covers asOf.
	ActiveExemptions(ctx context.Context, asOf time.Time) ([]Exemption, error)
}

// Resolver is the cascading percentage lookup used by the calculation engine.
type Resolver interface {
	Resolve(ctx context.Context, corpID, allianceID int64, asOf time.Time, category sdedomain.TaxCategory) (float64, error)
	Exempt(ctx context.Context, characterID, corpID int64, asOf time.Time) (bool, error)
}
