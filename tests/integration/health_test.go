//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestLivez(t *testing.T) {
	body := expectStatus[healthStatus](t, doGet(t, "/livez"), http.StatusOK)
	if body.Data.Status != "ok" {
		t.Fatalf("expected status ok, got %q", body.Data.Status)
	}
}

func TestReadyz(t *testing.T) {
	body := expectStatus[healthStatus](t, doGet(t, "/readyz"), http.StatusOK)
	if body.Data.Status != "ok" {
		t.Fatalf("expected status ok, got %q", body.Data.Status)
	}
}
