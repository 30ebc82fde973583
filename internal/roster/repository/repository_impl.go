package repository

import (
	"context"

	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) rosterdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Character(ctx context.Context, id int64) (*rosterdomain.Character, error) {
	var c rosterdomain.Character
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, corp_id, alliance_id, account_id, is_main, updated_at
		 FROM characters
		 WHERE id = ?`,
		id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repository) CharactersInAlliance(ctx context.Context, allianceID int64) ([]rosterdomain.Character, error) {
	var chars []rosterdomain.Character
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, corp_id, alliance_id, account_id, is_main, updated_at
		 FROM characters
		 WHERE alliance_id = ?
		 ORDER BY id ASC`,
		allianceID,
	).Scan(&chars).Error
	if err != nil {
		return nil, err
	}
	return chars, nil
}

func (r *repository) OwningAccount(ctx context.Context, characterID int64) (int64, bool, error) {
	c, err := r.Character(ctx, characterID)
	if err != nil {
		return 0, false, err
	}
	if c == nil || c.AccountID == nil {
		return 0, false, nil
	}
	return *c.AccountID, true, nil
}

func (r *repository) Aliases(ctx context.Context, accountID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT id FROM characters WHERE account_id = ? ORDER BY id ASC`,
		accountID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) MainCharacter(ctx context.Context, accountID int64) (int64, error) {
	var id int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT id FROM characters WHERE account_id = ? AND is_main = true LIMIT 1`,
		accountID,
	).Scan(&id).Error
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, rosterdomain.ErrNoMainCharacter
	}
	return id, nil
}
