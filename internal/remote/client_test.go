package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSubscriptionSendsBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SubscriptionPath {
			t.Errorf("path = %s, want %s", r.URL.Path, SubscriptionPath)
		}
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"hard_limit_usd": 25.5, "access_until": 1700000000}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, nil)
	sub, err := c.Subscription(context.Background(), "sk-test")
	if err != nil {
		t.Fatalf("Subscription failed: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
	if sub.HardLimitUSD != 25.5 {
		t.Errorf("HardLimitUSD = %v, want 25.5", sub.HardLimitUSD)
	}
	if sub.AccessUntil != 1700000000 {
		t.Errorf("AccessUntil = %d, want 1700000000", sub.AccessUntil)
	}
}

func TestUsageDateWindow(t *testing.T) {
	var start, end string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start = r.URL.Query().Get("start_date")
		end = r.URL.Query().Get("end_date")
		_, _ = w.Write([]byte(`{"total_usage": 500}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	from := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.June, 13, 10, 0, 0, 0, time.UTC)
	rep, err := c.Usage(context.Background(), "sk-test", from, to)
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if start != "2024-3-5" || end != "2024-6-13" {
		t.Errorf("window = %s..%s, want 2024-3-5..2024-6-13", start, end)
	}
	if rep.TotalUsage != 500 {
		t.Errorf("TotalUsage = %v, want 500", rep.TotalUsage)
	}
}

func TestTokenLogsUsesQueryKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("log endpoint must not receive an Authorization header")
		}
		if r.URL.Query().Get("key") != "sk-a+b" {
			t.Errorf("key = %q, want sk-a+b", r.URL.Query().Get("key"))
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"","data":[{"created_at":1,"model_name":"gpt-4","type":2,"quota":7.25}]}`))
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, time.Second, nil).TokenLogs(context.Background(), "sk-a+b")
	if err != nil {
		t.Fatalf("TokenLogs failed: %v", err)
	}
	if !page.Success || len(page.Data) != 1 || !page.Data[0].Quota.Equal(decimal.RequireFromString("7.25")) {
		t.Errorf("page = %+v", page)
	}
}

func TestStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).Subscription(context.Background(), "sk-bad")
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *remote.Error", err)
	}
	if rerr.Endpoint != "subscription" {
		t.Errorf("Endpoint = %s, want subscription", rerr.Endpoint)
	}
	if !IsUnauthorized(err) {
		t.Error("IsUnauthorized = false, want true")
	}
}

func TestDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).Usage(context.Background(), "sk", time.Now(), time.Now())
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *remote.Error", err)
	}
	if IsUnauthorized(err) {
		t.Error("decode failure must not look like an auth failure")
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, nil).TokenLogs(context.Background(), "sk")
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *remote.Error", err)
	}
}
