package esi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/evetools/oretax/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Params{
		Config: config.Config{ESIBaseURL: srv.URL, ESIUserAgent: "oretax-test"},
		Log:    zap.NewNop(),
		Tokens: StaticTokenSource("token"),
	})
	return c, srv
}

func TestOrders_Paged(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/10000002/orders/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "34", r.URL.Query().Get("type_id"))
		assert.Equal(t, "sell", r.URL.Query().Get("order_type"))

		w.Header().Set("X-Pages", "2")
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write([]byte(`[{"location_id":60003760,"price":10.0,"volume_remain":5}]`))
		default:
			w.Write([]byte(`[{"location_id":60003761,"price":11.5,"volume_remain":3}]`))
		}
	})
	c, _ := newTestClient(t, mux)

	orders, err := c.Orders(context.Background(), 10000002, 34, OrderSideSell)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(60003760), orders[0].LocationID)
	assert.Equal(t, 11.5, orders[1].Price)
}

func TestMiningEvents_WindowAndDegradation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/characters/1001/mining/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write([]byte(`[
			{"date":"2026-03-02","quantity":1000,"solar_system_id":30000142,"type_id":17471},
			{"date":"2026-02-15","quantity":50,"solar_system_id":30000142,"type_id":17471}
		]`))
	})
	mux.HandleFunc("/characters/1002/mining/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c, _ := newTestClient(t, mux)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	events, err := c.MiningEvents(context.Background(), []int64{1001, 1002}, from, to)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1001), events[0].CharacterID)
	assert.Equal(t, int64(1000), events[0].Quantity)
}

func TestWalletJournal_SinceFilter(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/corporations/2001/wallets/1/journal/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"amount":5000000,"first_party_id":1001,"second_party_id":2001,"date":"` + now.Format(time.RFC3339) + `","ref_type":"player_donation"},
			{"id":2,"amount":100,"first_party_id":1001,"second_party_id":2001,"date":"2026-01-01T00:00:00Z","ref_type":"player_donation"}
		]`))
	})
	c, _ := newTestClient(t, mux)

	entries, err := c.WalletJournal(context.Background(), 2001, 1, now.AddDate(0, 0, -35))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ID)
}

func TestHistoryAverage_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/10000002/history/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	c, _ := newTestClient(t, mux)

	avg, err := c.HistoryAverage(context.Background(), 10000002, 34)
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestGet_StatusError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Orders(context.Background(), 10000002, 34, OrderSideBuy)
	assert.ErrorIs(t, err, ErrStatus)
}

func TestXPagesParsing(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-Pages", "3")
		w.Write([]byte(`[{"location_id":` + strconv.Itoa(calls) + `,"price":1,"volume_remain":1}]`))
	}))

	orders, err := c.Orders(context.Background(), 1, 34, OrderSideSell)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
	assert.Equal(t, 3, calls)
}
