//go:build integration

package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func newRequest(t *testing.T, method, path string, header map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		sent   string
		wantID string
	}{
		{name: "generated on liveness", path: "/livez"},
		{name: "kept from client", path: "/api/product/get-products", sent: "checkout-7f3a", wantID: "checkout-7f3a"},
		{name: "replaced when oversized", path: "/api/product/get-products", sent: strings.Repeat("x", 129)},
		{name: "present on error envelope", path: "/api/order/get-orders", sent: "orders-401", wantID: "orders-401"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.sent != "" {
				header["X-Request-ID"] = tt.sent
			}
			resp := newRequest(t, http.MethodGet, tt.path, header)
			defer resp.Body.Close()

			got := resp.Header.Get("X-Request-ID")
			switch {
			case tt.wantID != "" && got != tt.wantID:
				t.Errorf("X-Request-ID: got %q, want %q", got, tt.wantID)
			case tt.wantID == "" && len(got) != 36:
				t.Errorf("X-Request-ID: got %q, want a generated UUID", got)
			}
		})
	}
}

func TestCORS_WebhookPreflight(t *testing.T) {
	resp := newRequest(t, http.MethodOptions, "/api/payment/web-hook-with-stripe", map[string]string{
		"Origin":                         "https://dashboard.example.com",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Stripe-Signature, Content-Type",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Stripe-Signature") {
		t.Errorf("Access-Control-Allow-Headers: got %q, want Stripe-Signature allowed", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Access-Control-Allow-Methods: got %q, want POST allowed", got)
	}
	if got := resp.Header.Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age: got %q, want 86400", got)
	}
}

func TestCORS_OnUnauthorized(t *testing.T) {
	resp := newRequest(t, http.MethodGet, "/api/cart/get-cart", map[string]string{
		"Origin": "https://shop.example.com",
	})
	body := expectStatus[any](t, resp, http.StatusUnauthorized)

	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin missing on a 401, browsers would hide the error")
	}
	if body.Code != http.StatusUnauthorized {
		t.Errorf("envelope code: got %d, want 401", body.Code)
	}
}

func TestRateLimit_Headers(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "catalog", method: http.MethodGet, path: "/api/product/get-products"},
		{name: "login", method: http.MethodPost, path: "/api/auth/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := newRequest(t, tt.method, tt.path, nil)
			defer resp.Body.Close()

			for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"} {
				if resp.Header.Get(h) == "" {
					t.Errorf("%s header not present", h)
				}
			}
		})
	}
}

func TestRouting_Envelopes(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		wantMessage string
	}{
		{name: "unknown route", method: http.MethodGet, path: "/api/does-not-exist", wantStatus: http.StatusNotFound, wantMessage: "Route not found"},
		{name: "wrong method", method: http.MethodDelete, path: "/api/product/get-products", wantStatus: http.StatusMethodNotAllowed, wantMessage: "Method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := expectStatus[any](t, newRequest(t, tt.method, tt.path, nil), tt.wantStatus)
			if body.Message != tt.wantMessage {
				t.Errorf("message: got %q, want %q", body.Message, tt.wantMessage)
			}
		})
	}
}
