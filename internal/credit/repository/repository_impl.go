package repository

import (
	"context"

	taxdomain "github.com/evetools/oretax/internal/taxation/domain"
	"gorm.io/gorm"
)

type reader struct {
	db *gorm.DB
}

// NewReader exposes balances read-only; the recompute service owns writes.
func NewReader(db *gorm.DB) taxdomain.CreditReader {
	return &reader{db: db}
}

func (r *reader) Balance(ctx context.Context, characterID int64) (float64, error) {
	var amount float64
	err := r.db.WithContext(ctx).Raw(
		`SELECT amount FROM credit_balances WHERE character_id = ?`,
		characterID,
	).Scan(&amount).Error
	if err != nil {
		return 0, err
	}
	return amount, nil
}
