package esi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

type OrderSide string

const (
	OrderSideSell OrderSide = "sell"
	OrderSideBuy  OrderSide = "buy"
)

type Order struct {
	LocationID int64   `json:"location_id"`
	Price      float64 `json:"price"`
	VolumeRem  int64   `json:"volume_remain"`
}

type historyDay struct {
	Average float64 `json:"average"`
	Date    string  `json:"date"`
}

type adjustedPrice struct {
	TypeID        int64    `json:"type_id"`
	AdjustedPrice *float64 `json:"adjusted_price"`
	AveragePrice  *float64 `json:"average_price"`
}

// Orders returns the regional order book for one type and side.
func (c *Client) Orders(ctx context.Context, regionID, typeID int64, side OrderSide) ([]Order, error) {
	q := url.Values{}
	q.Set("type_id", strconv.FormatInt(typeID, 10))
	q.Set("order_type", string(side))
	return getPaged[Order](ctx, c, fmt.Sprintf("/markets/%d/orders/", regionID), q, false)
}

// HistoryAverage returns the most recent daily average price, or 0 when the
// type has no trade history in the region.
func (c *Client) HistoryAverage(ctx context.Context, regionID, typeID int64) (float64, error) {
	q := url.Values{}
	q.Set("type_id", strconv.FormatInt(typeID, 10))

	var days []historyDay
	if _, err := c.get(ctx, fmt.Sprintf("/markets/%d/history/", regionID), q, false, &days); err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}
	return days[len(days)-1].Average, nil
}

// AdjustedPrices returns the CCP-adjusted price per type id.
func (c *Client) AdjustedPrices(ctx context.Context) (map[int64]float64, error) {
	var prices []adjustedPrice
	if _, err := c.get(ctx, "/markets/prices/", nil, false, &prices); err != nil {
		return nil, err
	}
	out := make(map[int64]float64, len(prices))
	for _, p := range prices {
		if p.AdjustedPrice != nil {
			out[p.TypeID] = *p.AdjustedPrice
		}
	}
	return out, nil
}
