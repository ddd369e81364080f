package givebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// Client is the external campaign/stats/ledger/registry surface the donation
// flow consumes. The backend owns persistence; this side only reads and
// appends.
type Client interface {
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	GetStats(ctx context.Context) (Stats, error)
	ListDonations(ctx context.Context, donorAddress string) ([]Donation, error)
	RecordDonation(ctx context.Context, record DonationRecord) error
	LinkDelegatedAccount(ctx context.Context, primaryAddress, delegatedAddress string) error
}

type restClient struct {
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient returns a Client for the REST backend rooted at baseURL.
func NewClient(baseURL string, log zerolog.Logger) Client {
	return &restClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

func (c *restClient) makeRequest(ctx context.Context, method, endpoint string, body any, out any) error {
	operation := func() (struct{}, error) {
		return struct{}{}, c.doRequest(ctx, method, endpoint, body, out)
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	return err
}

func (c *restClient) doRequest(ctx context.Context, method, endpoint string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("marshal request body: %w", err))
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Network errors are worth one more try.
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s %s: HTTP %d", method, endpoint, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("%s %s: HTTP %d (%s)", method, endpoint, resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
	}
	return nil
}

func (c *restClient) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var envelope struct {
		Campaigns []Campaign `json:"campaigns"`
	}
	if err := c.makeRequest(ctx, http.MethodGet, "/campaigns", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Campaigns, nil
}

func (c *restClient) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.makeRequest(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *restClient) ListDonations(ctx context.Context, donorAddress string) ([]Donation, error) {
	params := url.Values{}
	params.Set("address", donorAddress)

	var envelope struct {
		Donations []Donation `json:"donations"`
	}
	if err := c.makeRequest(ctx, http.MethodGet, "/user-donations?"+params.Encode(), nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Donations, nil
}

func (c *restClient) RecordDonation(ctx context.Context, record DonationRecord) error {
	return c.makeRequest(ctx, http.MethodPost, "/record-donation", record, nil)
}

func (c *restClient) LinkDelegatedAccount(ctx context.Context, primaryAddress, delegatedAddress string) error {
	payload := map[string]string{
		"wallet_address":      primaryAddress,
		"sub_account_address": delegatedAddress,
	}
	return c.makeRequest(ctx, http.MethodPost, "/update-sub-account", payload, nil)
}
