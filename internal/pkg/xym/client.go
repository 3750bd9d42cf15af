package xym

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to the XYM transfer rail. Signing and broadcasting happen on
// the rail's side; the client only submits transfer requests.
type Client struct {
	baseURL string
	token   string
	ua      string
	http    *http.Client
}

type transferRequest struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Amount  float64 `json:"amount"`
	Message string  `json:"message,omitempty"`
}

type transferResponse struct {
	Hash string `json:"hash"`
}

// NewClient creates a rail client. A non-positive timeout uses the default.
func NewClient(baseURL, token string, timeout time.Duration, ua string) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		ua:      ua,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Transfer submits one transfer and returns the rail's transaction hash.
// It is never retried here: a repeated call may move funds twice.
func (c *Client) Transfer(ctx context.Context, from, to string, amount float64, memo string) (string, error) {
	if c == nil || c.http == nil {
		return "", fmt.Errorf("xym transfer request error: client is nil")
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("xym transfer config error: base_url is empty")
	}
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("xym transfer request error: recipient address is empty")
	}
	if amount <= 0 {
		return "", fmt.Errorf("xym transfer request error: amount must be positive, got %v", amount)
	}

	payload, err := json.Marshal(transferRequest{From: from, To: to, Amount: amount, Message: memo})
	if err != nil {
		return "", fmt.Errorf("xym transfer request error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("xym transfer request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		if readErr != nil {
			return "", fmt.Errorf("xym transfer http error: status=%d body=<failed to read body: %v>", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("xym transfer http error: status=%d body=%s", resp.StatusCode, string(body))
	}
	if readErr != nil {
		return "", fmt.Errorf("xym transfer response error: %w", readErr)
	}

	var out transferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("xym transfer response error: %w", err)
	}
	if out.Hash == "" {
		return "", fmt.Errorf("xym transfer response error: missing hash")
	}
	return out.Hash, nil
}

func classifyRequestError(ctx context.Context, err error) error {
	if isTimeoutError(ctx, err) {
		return fmt.Errorf("xym transfer timeout: %w", err)
	}
	if isNetworkError(err) {
		return fmt.Errorf("xym transfer network error: %w", err)
	}
	return fmt.Errorf("xym transfer request error: %w", err)
}

func isTimeoutError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}
