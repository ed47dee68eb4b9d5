package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlack_PostsAttachment(t *testing.T) {
	var got slackMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	err := s.Send(context.Background(), "ignored@example.com", "🚨 URGENT: Shop is DOWN", "Error: timeout")
	if err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got.Text != "*🚨 URGENT: Shop is DOWN*" || got.Username != "healthwatch" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("want one attachment, got %+v", got.Attachments)
	}
	a := got.Attachments[0]
	if a.Color != "danger" || a.Text != "Error: timeout" || a.Ts == 0 {
		t.Fatalf("unexpected attachment: %+v", a)
	}
}

func TestSlackColor(t *testing.T) {
	if c := slackColor("Shop is down"); c != "danger" {
		t.Fatalf("down subject: %q", c)
	}
	if c := slackColor("Shop recovered"); c != "warning" {
		t.Fatalf("other subject: %q", c)
	}
}

func TestSlack_Non2xxCarriesReason(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no_service\n"))
	}))
	defer ts.Close()

	err := NewSlack(ts.URL).Send(context.Background(), "", "X", "Y")
	if err == nil {
		t.Fatal("expected error on non-2xx")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "no_service") {
		t.Fatalf("error lacks status or reason: %v", err)
	}
}

func TestSlack_NilIsDisabled(t *testing.T) {
	if NewSlack("") != nil {
		t.Fatal("expected nil for empty webhook")
	}
	var s *Slack
	if err := s.Send(context.Background(), "", "X", "Y"); err == nil {
		t.Fatal("nil slack should refuse to send")
	}
}
