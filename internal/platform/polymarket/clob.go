package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/crypto"
	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// Fixed-point scales used by the CLOB order payload.
const (
	priceScale = 1e4 // price in 1/10000ths
	sizeScale  = 1e6 // shares in millionths
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It signs and submits market orders and implements
// domain.ExchangeClient.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
	funder     string // address holding the USDC collateral
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// funder may be empty, in which case the signer's address is used as maker.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth, funder string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
		funder:   funder,
	}
}

// PlaceOrder signs and submits a market order. The order payload is
// canonicalized as sorted-keys JSON, personal-signed, and posted with HMAC
// auth headers.
func (c *ClobClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if req.TokenID == "" || req.Price <= 0 || req.Size <= 0 {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: %w", domain.ErrInvalidOrder)
	}

	maker := c.funder
	if maker == "" {
		maker = c.signer.Address().Hex()
	}

	payload := map[string]any{
		"salt":    strconv.FormatInt(rand.Int63(), 10),
		"maker":   maker,
		"signer":  c.signer.Address().Hex(),
		"tokenId": req.TokenID,
		"price":   strconv.FormatInt(int64(math.Round(req.Price*priceScale)), 10),
		"size":    strconv.FormatInt(int64(math.Round(req.Size*sizeScale)), 10),
		"side":    string(req.Side),
	}

	sig, err := c.signer.SignOrderPayload(payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: %w: %v", domain.ErrSigningFailed, err)
	}

	body := map[string]any{
		"order":     payload,
		"signature": sig,
		"owner":     maker,
		"orderType": "FOK",
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	result := apiResult.ToDomain()
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: order rejected: %s", result.Message)
	}
	return result, nil
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hmacAuth != nil {
		for k, v := range c.hmacAuth.Headers(method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface check.
var _ domain.ExchangeClient = (*ClobClient)(nil)
