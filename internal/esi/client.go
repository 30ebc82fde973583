package esi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evetools/oretax/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrStatus       = errors.New("esi_unexpected_status")
	ErrTokenMissing = errors.New("esi_token_missing")
)

// TokenSource supplies the bearer token for authenticated endpoints. The host
// application owns token refresh; the engine only asks for the current value.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrTokenMissing
	}
	return string(s), nil
}

type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	tokens    TokenSource
	log       *zap.Logger
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Tokens TokenSource `optional:"true"`
}

var Module = fx.Module("esi",
	fx.Provide(New),
)

func New(p Params) *Client {
	return &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		baseURL:   p.Config.ESIBaseURL,
		userAgent: p.Config.ESIUserAgent,
		tokens:    p.Tokens,
		log:       p.Log.Named("esi"),
	}
}

// get fetches one page and reports the X-Pages total so callers can iterate.
func (c *Client) get(ctx context.Context, path string, query url.Values, authed bool, out any) (pages int, err error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if authed {
		if c.tokens == nil {
			return 0, ErrTokenMissing
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w: %s %d: %s", ErrStatus, path, resp.StatusCode, body)
	}

	pages = 1
	if h := resp.Header.Get("X-Pages"); h != "" {
		if n, convErr := strconv.Atoi(h); convErr == nil && n > 0 {
			pages = n
		}
	}
	return pages, json.NewDecoder(resp.Body).Decode(out)
}

// getPaged walks every page of a list endpoint, appending into collect.
func getPaged[T any](ctx context.Context, c *Client, path string, query url.Values, authed bool) ([]T, error) {
	var all []T
	page := 1
	for {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("page", strconv.Itoa(page))

		var batch []T
		pages, err := c.get(ctx, path, q, authed, &batch)
		if err != nil {
			return all, err
		}
		all = append(all, batch...)
		if page >= pages {
			return all, nil
		}
		page++
	}
}
