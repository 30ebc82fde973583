package repository

import (
	"context"

	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) sdedomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindType(ctx context.Context, id int64) (*sdedomain.ItemType, error) {
	var t sdedomain.ItemType
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, group_id, category_id
		 FROM item_types
		 WHERE id = ?`,
		id,
	).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repository) FindTypeByName(ctx context.Context, name string) (*sdedomain.ItemType, error) {
	var t sdedomain.ItemType
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, group_id, category_id
		 FROM item_types
		 WHERE name = ?
		 LIMIT 1`,
		name,
	).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}
