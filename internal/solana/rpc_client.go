package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"solana-share-vault/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultCommitment  = "confirmed"
)

// maxResponseBytes caps the size of a single RPC response body.
const maxResponseBytes = 16 << 20

// RPCError is an error object returned by the node. It is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPClient implements RPCClient over JSON-RPC 2.0.
type HTTPClient struct {
	endpoint   string
	http       *http.Client
	commitment string
	backoff    backoff
	nextID     atomic.Uint64
}

// backoff is the retry schedule of a client.
type backoff struct {
	retries int
	initial time.Duration
	max     time.Duration
	factor  float64
}

// next returns the delay following d.
func (b backoff) next(d time.Duration) time.Duration {
	return min(time.Duration(float64(d)*b.factor), b.max)
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.backoff.retries = n }
}

// WithRetryDelay sets the first retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.backoff.initial = d }
}

// WithMaxDelay caps the retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.backoff.max = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = client }
}

// WithCommitment sets the commitment level used for reads.
func WithCommitment(commitment string) ClientOption {
	return func(c *HTTPClient) { c.commitment = commitment }
}

// NewHTTPClient creates a Solana RPC client for endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: DefaultTimeout},
		commitment: DefaultCommitment,
		backoff: backoff{
			retries: DefaultMaxRetries,
			initial: DefaultRetryDelay,
			max:     DefaultMaxDelay,
			factor:  DefaultBackoffMult,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// transientError marks a failure worth retrying. after, when set, is the
// delay requested by the server.
type transientError struct {
	err   error
	after time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// call runs method and decodes its result into T, retrying transient
// failures with exponential backoff.
func call[T any](ctx context.Context, c *HTTPClient, method string, params ...interface{}) (T, error) {
	var zero T

	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return zero, fmt.Errorf("marshal %s request: %w", method, err)
	}

	delay := c.backoff.initial
	for attempt := 0; ; attempt++ {
		raw, err := c.post(ctx, body)
		if err == nil {
			var out T
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &out); err != nil {
					return zero, fmt.Errorf("decode %s result: %w", method, err)
				}
			}
			return out, nil
		}

		var te *transientError
		if !errors.As(err, &te) {
			return zero, err
		}
		if attempt >= c.backoff.retries {
			return zero, fmt.Errorf("%s: max retries exceeded: %w", method, te.err)
		}

		wait := delay
		if te.after > 0 {
			wait = te.after
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
		delay = c.backoff.next(delay)
	}
}

// post performs one HTTP round trip and returns the raw result. Node errors
// come back as *RPCError, retryable failures as *transientError.
func (c *HTTPClient) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transientError{err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &transientError{err: errors.New("rate limited"), after: retryAfter(resp.Header)}
	case resp.StatusCode >= 500:
		return nil, &transientError{err: fmt.Errorf("status %d: %s", resp.StatusCode, payload)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &transientError{err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	return decoded.Result, nil
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (c *HTTPClient) readConfig(encoded bool) map[string]string {
	cfg := map[string]string{"commitment": c.commitment}
	if encoded {
		cfg["encoding"] = "base64"
	}
	return cfg
}

type rpcContext struct {
	Slot int64 `json:"slot"`
}

type accountInfoResult struct {
	Context rpcContext `json:"context"`
	Value   *struct {
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
		Data       []string `json:"data"` // [payload, encoding]
		Executable bool     `json:"executable"`
		RentEpoch  uint64   `json:"rentEpoch"`
	} `json:"value"`
}

// GetAccountInfo returns the account at pubkey, or nil if it does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey PublicKey) (*AccountInfo, error) {
	res, err := call[accountInfoResult](ctx, c, "getAccountInfo", pubkey.String(), c.readConfig(true))
	if err != nil {
		return nil, err
	}
	v := res.Value
	if v == nil {
		return nil, nil
	}

	owner, err := ParsePublicKey(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("account %s owner: %w", pubkey, err)
	}
	info := &AccountInfo{
		Slot:       res.Context.Slot,
		Lamports:   v.Lamports,
		Owner:      owner,
		Executable: v.Executable,
		RentEpoch:  v.RentEpoch,
	}
	if len(v.Data) > 0 {
		if info.Data, err = base64.StdEncoding.DecodeString(v.Data[0]); err != nil {
			return nil, fmt.Errorf("account %s data: %w", pubkey, err)
		}
	}
	return info, nil
}

// tokenAmountResult is shared by getTokenAccountBalance and getTokenSupply.
// The raw amount is a decimal string so u64 values survive JSON.
type tokenAmountResult struct {
	Context rpcContext `json:"context"`
	Value   *struct {
		Amount   string `json:"amount"`
		Decimals uint8  `json:"decimals"`
	} `json:"value"`
}

func (c *HTTPClient) tokenAmount(ctx context.Context, method string, key PublicKey) (*TokenAmount, error) {
	res, err := call[tokenAmountResult](ctx, c, method, key.String(), c.readConfig(false))
	if err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, fmt.Errorf("%s %s: empty result", method, key)
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s %s: amount %q: %w", method, key, res.Value.Amount, err)
	}
	return &TokenAmount{
		Slot:     res.Context.Slot,
		Amount:   amount,
		Decimals: res.Value.Decimals,
	}, nil
}

// GetTokenAccountBalance returns the raw amount held by a token account.
func (c *HTTPClient) GetTokenAccountBalance(ctx context.Context, account PublicKey) (*TokenAmount, error) {
	return c.tokenAmount(ctx, "getTokenAccountBalance", account)
}

// GetTokenSupply returns the total supply of a mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint PublicKey) (*TokenAmount, error) {
	return c.tokenAmount(ctx, "getTokenSupply", mint)
}

// GetSlot returns the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	return call[int64](ctx, c, "getSlot")
}

var _ RPCClient = (*HTTPClient)(nil)
