package brapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetQuotes_ParsesResponse(t *testing.T) {
	mockResp := map[string]interface{}{
		"results": []map[string]interface{}{
			{
				"symbol":             "PETR4",
				"regularMarketPrice": 38.42,
				"currency":           "BRL",
				"regularMarketTime":  "2026-08-27T20:07:00Z",
			},
			{
				"symbol":             "VALE3",
				"regularMarketPrice": "61.15",
				"currency":           "BRL",
				"regularMarketTime":  "2026-08-27T20:07:00Z",
			},
		},
	}

	var capturedPath string
	var capturedToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedToken = r.URL.Query().Get("token")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-token", WithBaseURL(srv.URL))
	quotes, err := client.GetQuotes(context.Background(), []string{"PETR4", "VALE3"})
	if err != nil {
		t.Fatalf("GetQuotes failed: %v", err)
	}

	if capturedPath != "/quote/PETR4,VALE3" {
		t.Errorf("expected path /quote/PETR4,VALE3, got %s", capturedPath)
	}
	if capturedToken != "test-token" {
		t.Errorf("expected token test-token, got %s", capturedToken)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Ticker != "PETR4" {
		t.Errorf("expected ticker PETR4, got %s", quotes[0].Ticker)
	}
	if quotes[0].Price != 38.42 {
		t.Errorf("expected price 38.42, got %.2f", quotes[0].Price)
	}
	// Prices arriving as strings still parse.
	if quotes[1].Price != 61.15 {
		t.Errorf("expected price 61.15, got %.2f", quotes[1].Price)
	}
	if quotes[1].Currency != "BRL" {
		t.Errorf("expected currency BRL, got %s", quotes[1].Currency)
	}
}

func TestGetQuote_SingleTicker(t *testing.T) {
	mockResp := map[string]interface{}{
		"results": []map[string]interface{}{
			{
				"symbol":             "ITUB4",
				"regularMarketPrice": 29.80,
				"currency":           "BRL",
				"regularMarketTime":  "2026-08-27T20:07:00Z",
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("", WithBaseURL(srv.URL))
	quote, err := client.GetQuote(context.Background(), "ITUB4")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.Ticker != "ITUB4" {
		t.Errorf("expected ticker ITUB4, got %s", quote.Ticker)
	}
	if quote.Price != 29.80 {
		t.Errorf("expected price 29.80, got %.2f", quote.Price)
	}
}

func TestGetQuotes_APIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":true,"message":"invalid token"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-token", WithBaseURL(srv.URL))
	_, err := client.GetQuotes(context.Background(), []string{"PETR4"})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
}

func TestGetQuotes_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[],"error":true,"message":"ticker not found"}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", WithBaseURL(srv.URL))
	_, err := client.GetQuotes(context.Background(), []string{"NOPE99"})
	if err == nil {
		t.Fatal("expected error for error payload")
	}
}

func TestGetQuotes_EmptyTickers(t *testing.T) {
	client := NewClient("test-token")
	quotes, err := client.GetQuotes(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetQuotes failed: %v", err)
	}
	if quotes != nil {
		t.Errorf("expected nil quotes for empty ticker list, got %v", quotes)
	}
}
