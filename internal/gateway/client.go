package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// 決済ゲートウェイのHTTPクライアント。
// initialize で認可URLを取り、決着はwebhookかverifyで受ける。
type Client struct {
	baseURL *url.URL
	secret  string
	http    *http.Client

	// initializeのリトライ回数と初期バックオフ
	maxAttempts int
	backoff     time.Duration
}

func NewClient(baseURL string, secret string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway base url %q: %w", baseURL, err)
	}

	return &Client{
		baseURL:     u,
		secret:      secret,
		http:        &http.Client{Timeout: timeout},
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
	}, nil
}

type InitializeRequest struct {
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
}

type InitializeResult struct {
	Reference        string
	AuthorizationURL string
	Raw              json.RawMessage
}

type VerifyResult struct {
	Status      string // success / failed / pending
	AmountMinor int64
	Raw         json.RawMessage
}

// ゲートウェイ応答の共通形
type apiResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Reference        string `json:"reference"`
		AuthorizationURL string `json:"authorization_url"`
		Status           string `json:"status"`
		Amount           int64  `json:"amount"`
	} `json:"data"`
}

// RetryableError はネットワーク断・5xxなどリトライしてよい失敗。
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Initialize は決済を開始して認可URLを取得する。
// ネットワーク断と5xxは指数バックオフで maxAttempts 回まで再試行。
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return InitializeResult{}, err
	}

	var lastErr error
	wait := c.backoff

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return InitializeResult{}, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		raw, err := c.post(ctx, "/transaction/initialize", body)
		if err != nil {
			var re *RetryableError
			if errors.As(err, &re) {
				lastErr = err
				continue
			}
			return InitializeResult{}, err
		}

		var resp apiResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return InitializeResult{}, fmt.Errorf("decode gateway response: %w", err)
		}
		if !resp.Status {
			return InitializeResult{}, fmt.Errorf("gateway rejected initialize for %s", req.Reference)
		}

		ref := resp.Data.Reference
		if ref == "" {
			ref = req.Reference
		}

		return InitializeResult{
			Reference:        ref,
			AuthorizationURL: resp.Data.AuthorizationURL,
			Raw:              raw,
		}, nil
	}

	return InitializeResult{}, lastErr
}

// Verify はreferenceで決済状態を同期照会する（webhook遅延時のフォールバック）。
func (c *Client) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	raw, err := c.get(ctx, "/transaction/verify/"+url.PathEscape(reference))
	if err != nil {
		return VerifyResult{}, err
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return VerifyResult{}, fmt.Errorf("decode gateway response: %w", err)
	}
	if !resp.Status {
		return VerifyResult{}, fmt.Errorf("gateway rejected verify for %s", reference)
	}

	return VerifyResult{
		Status:      resp.Data.Status,
		AmountMinor: resp.Data.Amount,
		Raw:         raw,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, body []byte) ([]byte, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetryableError{Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &RetryableError{Err: fmt.Errorf("gateway %s %s: status %d", method, path, resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway %s %s: status %d", method, path, resp.StatusCode)
	}

	return raw, nil
}
