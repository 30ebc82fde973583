package domain

import "context"

type Repository interface {
	FindType(ctx context.Context, id int64) (*ItemType, error)
	FindTypeByName(ctx context.Context, name string) (*ItemType, error)
}
