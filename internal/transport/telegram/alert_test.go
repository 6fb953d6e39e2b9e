package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestSplitText(t *testing.T) {
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text split: %v", got)
	}
	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitText(text, 10)
	if len(got) != 2 || got[0] != "aaaaaa" || got[1] != "bbbbbb" {
		t.Fatalf("expected newline split, got %q", got)
	}
	long := strings.Repeat("x", 25)
	if got := splitText(long, 10); len(got) != 3 {
		t.Fatalf("expected 3 hard chunks, got %d", len(got))
	}
}

func TestSendAlertPostsToBotAPI(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", ChatID: 42, APIURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SendAlert(context.Background(), "[ERROR] dispatch failed"); err != nil {
		t.Fatalf("SendAlert: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one sendMessage call, got %d", calls.Load())
	}
}

func TestNewRequiresTokenAndChat(t *testing.T) {
	if _, err := New(Config{ChatID: 1}); err == nil {
		t.Fatalf("expected token error")
	}
	if _, err := New(Config{Token: "x"}); err == nil {
		t.Fatalf("expected chat id error")
	}
}
