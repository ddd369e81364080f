package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type rpcReq struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResp struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Client speaks the wallet provider protocol over JSON-RPC/HTTP.
type Client struct {
	url   string
	httpc *http.Client
	log   zerolog.Logger
}

// NewClient returns a Provider backed by the JSON-RPC endpoint at url.
func NewClient(url string, log zerolog.Logger) *Client {
	return &Client{
		url:   strings.TrimSpace(url),
		httpc: &http.Client{Timeout: 12 * time.Second},
		log:   log,
	}
}

func (c *Client) rpc(ctx context.Context, method string, params any, out any) error {
	payload := rpcReq{Jsonrpc: "2.0", ID: 1, Method: method, Params: params}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var rr rpcResp
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rr.Error != nil {
		// Surfaced raw; the classifier owns interpretation.
		return rr.Error
	}
	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) Connect(ctx context.Context) error {
	return c.rpc(ctx, MethodConnect, []any{}, nil)
}

func (c *Client) RequestAccounts(ctx context.Context) (AccountPair, error) {
	var accounts []string
	if err := c.rpc(ctx, MethodRequestAccounts, []any{}, &accounts); err != nil {
		return AccountPair{}, err
	}
	if len(accounts) == 0 {
		return AccountPair{}, fmt.Errorf("%s returned no accounts", MethodRequestAccounts)
	}
	pair := AccountPair{Delegated: accounts[0], Primary: accounts[0]}
	if len(accounts) > 1 {
		pair.Primary = accounts[1]
	}
	return pair, nil
}

func (c *Client) SendCalls(ctx context.Context, req SendCallsRequest) (string, error) {
	var raw json.RawMessage
	if err := c.rpc(ctx, MethodSendCalls, []any{req}, &raw); err != nil {
		return "", err
	}
	// Providers return either a bare batch id or an {"id": ...} object.
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.ID != "" {
		return obj.ID, nil
	}
	return "", fmt.Errorf("%s returned no batch id (%s)", MethodSendCalls, string(raw))
}

func (c *Client) GetCallsStatus(ctx context.Context, batchID string) (CallsStatus, error) {
	var st CallsStatus
	if err := c.rpc(ctx, MethodGetCallsStatus, []any{batchID}, &st); err != nil {
		return CallsStatus{}, err
	}
	return st, nil
}
