package repository

import (
	"context"
	"time"

	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	ratedomain "github.com/evetools/oretax/internal/taxrate/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) ratedomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindRate(ctx context.Context, scope ratedomain.RateScope, scopeID int64, category sdedomain.TaxCategory, asOf time.Time) (*ratedomain.TaxRate, error) {
	var rate ratedomain.TaxRate
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, scope, scope_id, category, percent, effective_from, effective_until, enabled, created_at, updated_at
		 FROM tax_rates
		 WHERE scope = ? AND scope_id = ? AND category = ?
		   AND enabled = true
		   AND effective_from <= ?
		   AND (effective_until IS NULL OR effective_until > ?)
		 ORDER BY id ASC
		 LIMIT 1`,
		scope, scopeID, category, asOf, asOf,
	).Scan(&rate).Error
	if err != nil {
		return nil, err
	}
	if rate.ID == 0 {
		return nil, nil
	}
	return &rate, nil
}

func (r *repository) ActiveExemptions(ctx context.Context, asOf time.Time) ([]ratedomain.Exemption, error) {
	var exemptions []ratedomain.Exemption
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, scope, scope_id, active_from, active_until, created_at
		 FROM exemptions
		 WHERE active_from <= ?
		   AND (active_until IS NULL OR active_until > ?)`,
		asOf, asOf,
	).Scan(&exemptions).Error
	if err != nil {
		return nil, err
	}
	return exemptions, nil
}
