package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ticket-office/config"
)

// HTTPGateway talks to the payment provider over its JSON API.
type HTTPGateway struct {
	baseURL  string
	apiKey   string
	currency string
	client   *http.Client
}

func NewHTTPGateway(cfg *config.PaymentConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPGateway{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		currency: cfg.Currency,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if req.Currency == "" {
		req.Currency = g.currency
	}

	var result ChargeResult
	if err := g.post(ctx, "/v1/charges", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, chargeID string) (*RefundResult, error) {
	body := map[string]string{"charge_id": chargeID}

	var result RefundResult
	if err := g.post(ctx, "/v1/refunds", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var gwErr GatewayError
		if err := json.NewDecoder(resp.Body).Decode(&gwErr); err != nil || gwErr.Code == "" {
			return &GatewayError{
				Code:    fmt.Sprintf("http_%d", resp.StatusCode),
				Message: resp.Status,
			}
		}
		return &gwErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
