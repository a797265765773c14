// Package catalog is the client side of the catalog service's two internal
// endpoints: the track-detail read used to validate carts at checkout, and
// the purchase-confirm write used to sync purchase records after payment.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 3 * time.Second},
	}
}

// Track is the subset of the catalog's track detail this service reads.
// Stock is nil for unlimited (shared-only) tracks.
type Track struct {
	ID     int64           `json:"id"`
	Status int             `json:"status"`
	Stock  *int            `json:"stock"`
	Price  decimal.Decimal `json:"price"`
}

// StatusPublished is the catalog's "live and sellable" track status.
const StatusPublished = 1

type result struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// GetTrack fetches the current detail for one track. A non-200 business code
// with a 2xx transport status means the track does not exist (or was taken
// down); transport failures map to ErrUnavailable.
func (c *Client) GetTrack(ctx context.Context, trackID int64) (*Track, error) {
	u := fmt.Sprintf("%s/catalog/tracks/%d", c.BaseURL, trackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: catalog returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTrackNotAvailable
	}

	var res result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if res.Code != http.StatusOK || len(res.Data) == 0 {
		return nil, ErrTrackNotAvailable
	}

	var t Track
	if err := json.Unmarshal(res.Data, &t); err != nil {
		return nil, fmt.Errorf("%w: decode track: %v", ErrUnavailable, err)
	}
	return &t, nil
}

// ConfirmPurchase records one purchased item downstream. The receiver is
// idempotent per (trackID, userID), so replays after partial failures are
// safe.
func (c *Client) ConfirmPurchase(ctx context.Context, trackID, userID int64, pricePaid decimal.Decimal) error {
	q := url.Values{}
	q.Set("trackId", strconv.FormatInt(trackID, 10))
	q.Set("userId", strconv.FormatInt(userID, 10))
	q.Set("pricePaid", pricePaid.String())

	u := fmt.Sprintf("%s/catalog/purchases/confirm?%s", c.BaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: catalog returned %d", ErrUnavailable, resp.StatusCode)
	}

	var res result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if res.Code != http.StatusOK {
		return fmt.Errorf("confirm purchase rejected: code=%d message=%s", res.Code, res.Message)
	}
	return nil
}
