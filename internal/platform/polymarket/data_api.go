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

// DataClient is the REST client for the Polymarket data API, which serves
// the trader leaderboard and per-wallet activity feeds.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new data API client.
//
// baseURL is the data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Leaderboard returns the top traders by 30-day volume.
func (d *DataClient) Leaderboard(ctx context.Context, limit int) ([]domain.WhaleTrader, error) {
	params := url.Values{}
	params.Set("window", "30d")
	params.Set("rankType", "vol")
	params.Set("limit", strconv.Itoa(limit))

	body, err := d.doGet(ctx, "/leaderboard?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: leaderboard: %w", err)
	}

	var entries []APILeaderboardEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode leaderboard: %w", err)
	}

	now := time.Now().UTC()
	traders := make([]domain.WhaleTrader, 0, len(entries))
	for i := range entries {
		traders = append(traders, entries[i].ToTrader(i+1, now))
	}
	return traders, nil
}

// TraderActivity returns recent trades for one wallet, newest first.
func (d *DataClient) TraderActivity(ctx context.Context, wallet string, limit int) ([]domain.WhaleMove, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("type", "TRADE")
	params.Set("limit", strconv.Itoa(limit))

	body, err := d.doGet(ctx, "/activity?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: activity %s: %w", wallet, err)
	}

	var rows []APIActivity
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode activity: %w", err)
	}

	moves := make([]domain.WhaleMove, 0, len(rows))
	for i := range rows {
		moves = append(moves, rows[i].ToMove())
	}
	return moves, nil
}

// doGet sends an unauthenticated GET request to the data API.
func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
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
