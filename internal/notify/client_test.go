package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNotify_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/notifications" {
			t.Fatalf("path = %s, want /api/notifications", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type = %q, want application/json", ct)
		}

		var n Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n.CreatedAt.IsZero() {
			t.Fatalf("created_at must be filled")
		}
		n.ID = "n-1"

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(n); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL + "/")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Notify(ctx, Notification{
		UserID:  "u-1",
		Kind:    "emergency_assigned",
		Title:   "Unidad asignada",
		Message: "AMB-07 en camino",
	})
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if res.ID != "n-1" || res.UserID != "u-1" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestNotify_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Notify(ctx, Notification{UserID: "u-1"})
	if err == nil {
		t.Fatalf("expected error for 500")
	}
	if res != nil {
		t.Fatalf("expected nil response for 500, got %+v", res)
	}
}

func TestNotify_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	res, err := client.Notify(context.Background(), Notification{UserID: "u-2", Title: "t"})
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if res == nil || res.UserID != "u-2" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestNotify_NotConfigured(t *testing.T) {
	var client *Client

	_, err := client.Notify(context.Background(), Notification{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}

	_, err = NewClient("").Notify(context.Background(), Notification{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
