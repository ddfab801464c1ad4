package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata. It implements domain.MarketSource.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ActiveMarkets returns snapshots of up to limit open markets, ordered by
// volume descending as the Gamma API serves them.
func (g *GammaClient) ActiveMarkets(ctx context.Context, limit int) ([]domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "volume")
	params.Set("ascending", "false")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	now := time.Now().UTC()
	snaps := make([]domain.MarketSnapshot, 0, len(apiMarkets))
	for i := range apiMarkets {
		snaps = append(snaps, apiMarkets[i].ToSnapshot(now))
	}
	return snaps, nil
}

// Snapshot returns a fresh observation of a single market by its ID.
func (g *GammaClient) Snapshot(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(marketID))
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket/gamma: get market %s: %w", marketID, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}

	return apiMarket.ToSnapshot(time.Now().UTC()), nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// Compile-time interface check.
var _ domain.MarketSource = (*GammaClient)(nil)
