package esi

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MiningEvent is one day of extraction by one character for one type.
type MiningEvent struct {
	CharacterID   int64
	TypeID        int64   `json:"type_id"`
	Quantity      int64   `json:"quantity"`
	SolarSystemID int64   `json:"solar_system_id"`
	Date          esiDate `json:"date"`
}

// WalletEntry mirrors a corp wallet journal line. Amount is positive when ISK
// entered the wallet.
type WalletEntry struct {
	ID            int64     `json:"id"`
	Amount        float64   `json:"amount"`
	FirstPartyID  int64     `json:"first_party_id"`
	SecondPartyID int64     `json:"second_party_id"`
	Date          time.Time `json:"date"`
	RefType       string    `json:"ref_type"`
}

type esiDate struct {
	time.Time
}

func (d *esiDate) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t.UTC()
	return nil
}

// MiningEvents pulls the mining ledger of each character and keeps entries
// inside [from, to). A character whose ledger cannot be fetched is skipped
// with a warning rather than failing the batch.
func (c *Client) MiningEvents(ctx context.Context, characterIDs []int64, from, to time.Time) ([]MiningEvent, error) {
	var all []MiningEvent
	for _, id := range characterIDs {
		events, err := getPaged[MiningEvent](ctx, c, fmt.Sprintf("/characters/%d/mining/", id), nil, true)
		if err != nil {
			c.log.Warn("mining ledger fetch failed",
				zap.Int64("character_id", id),
				zap.Error(err),
			)
			continue
		}
		for _, ev := range events {
			if ev.Date.Before(from) || !ev.Date.Before(to) {
				continue
			}
			ev.CharacterID = id
			all = append(all, ev)
		}
	}
	return all, nil
}

// WalletJournal returns corp wallet journal entries at or after `since`.
// ESI pages newest-first, so iteration stops at the first stale page.
func (c *Client) WalletJournal(ctx context.Context, corpID int64, division int, since time.Time) ([]WalletEntry, error) {
	entries, err := getPaged[WalletEntry](ctx, c, fmt.Sprintf("/corporations/%d/wallets/%d/journal/", corpID, division), nil, true)
	if err != nil {
		return nil, err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Date.Before(since) {
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}
