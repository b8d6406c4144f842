package wilayah

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestProvinces_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/provinces.json" {
			t.Fatalf("path = %s, want /provinces.json", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode([]Region{{ID: "31", Name: "DKI JAKARTA"}}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Provinces(ctx)
	if err != nil {
		t.Fatalf("Provinces error: %v", err)
	}
	if len(res) != 1 || res[0].ID != "31" || res[0].Name != "DKI JAKARTA" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestRegenciesAndDistricts_Paths(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.Regencies(ctx, "31"); err != nil {
		t.Fatalf("Regencies error: %v", err)
	}
	if _, err := client.Districts(ctx, "3171"); err != nil {
		t.Fatalf("Districts error: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/regencies/31.json" || paths[1] != "/districts/3171.json" {
		t.Fatalf("unexpected paths: %v", paths)
	}
}

func TestProvinces_ServerError(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Provinces(ctx)
	if err == nil {
		t.Fatalf("expected error for 502")
	}
	if res != nil {
		t.Fatalf("expected nil response, got %+v", res)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestProvinces_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	if _, err := client.Provinces(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
