package domain

import (
	"context"
	"errors"
	"time"
)

var ErrNoMainCharacter = errors.New("no_main_character")

// Character is a roster row mirrored from the host's account system. One
// account (payer) owns one or more alias characters; the main alias is the
// canonical billing identity.
type Character struct {
	ID         int64  `gorm:"primaryKey;column:id"`
	Name       string `gorm:"type:text;not null"`
	CorpID     int64  `gorm:"column:corp_id;not null;index"`
	AllianceID int64  `gorm:"column:alliance_id;not null;index"`

	// AccountID is null while ownership is unresolved; taxation then
	// degrades to treating the character as its own payer.
	AccountID *int64 `gorm:"column:account_id;index"`
	IsMain    bool   `gorm:"column:is_main;not null;default:false"`

	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Character) TableName() string { return "characters" }

type Repository interface {
	Character(ctx context.Context, id int64) (*Character, error)
	CharactersInAlliance(ctx context.Context, allianceID int64) ([]Character, error)

	// OwningAccount returns (accountID, true) or (0, false) when ownership
	// is unresolvable.
	OwningAccount(ctx context.Context, characterID int64) (int64, bool, error)

	// Aliases lists every character id owned by the account.
	Aliases(ctx context.Context, accountID int64) ([]int64, error)

	// MainCharacter returns the designated primary alias of the account.
	MainCharacter(ctx context.Context, accountID int64) (int64, error)
}
