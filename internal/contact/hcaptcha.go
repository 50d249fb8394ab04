package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/rurair-map/internal/core/observability"
)

const DefaultVerifyURL = "https://hcaptcha.com/siteverify"

// HCaptcha verifies tokens against the siteverify endpoint.
type HCaptcha struct {
	secret string
	url    string
	client *http.Client
}

func NewHCaptcha(secret, verifyURL string, client *http.Client) *HCaptcha {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HCaptcha{secret: secret, url: verifyURL, client: client}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (h *HCaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	form := url.Values{"response": {token}, "secret": {h.secret}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstreamLatency("hcaptcha", time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return false, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}
	var out verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return false, fmt.Errorf("decode siteverify: %w", err)
	}
	return out.Success, nil
}
