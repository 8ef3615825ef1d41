package loki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/BR88C/discord-boilerplate/internal/telemetry"
)

func TestPush_EmptyBaseURL(t *testing.T) {
	c := NewClient("")
	err := c.Push(context.Background(), time.Now(), "line", nil)
	if !errors.Is(err, ErrEmptyBaseURL) {
		t.Errorf("err = %v, want ErrEmptyBaseURL", err)
	}
}

func TestPush_SendsStream(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ts := time.Unix(1700000000, 5)
	c := NewClient(srv.URL + "/")
	if err := c.Push(context.Background(), ts, "hello", map[string]string{"sink": "in flux", "empty": "  "}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	s := got.Streams[0]
	if s.Stream["job"] != DefaultJob {
		t.Errorf("job = %q", s.Stream["job"])
	}
	if s.Stream["sink"] != "in_flux" {
		t.Errorf("sink label = %q, want sanitized in_flux", s.Stream["sink"])
	}
	if _, ok := s.Stream["empty"]; ok {
		t.Error("blank label should be dropped")
	}
	if len(s.Values) != 1 || s.Values[0][0] != strconv.FormatInt(ts.UnixNano(), 10) || s.Values[0][1] != "hello" {
		t.Errorf("values = %v", s.Values)
	}
}

func TestPush_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	if err := NewClient(srv.URL).Push(context.Background(), time.Now(), "x", nil); err == nil {
		t.Error("expected error for 400 response")
	}
}

func TestEmitter_Emit(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	em := NewEmitter(NewClient(srv.URL))
	event := &telemetry.CycleEvent{
		CycleID:   "c-1",
		Sink:      "leaderboard",
		Trigger:   telemetry.TriggerManual,
		Outcome:   telemetry.OutcomeFailure,
		Error:     "boom",
		CreatedAt: time.Now().UTC(),
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	labels := got.Streams[0].Stream
	if labels["sink"] != "leaderboard" || labels["outcome"] != "failure" || labels["trigger"] != "manual" {
		t.Errorf("labels = %v", labels)
	}
	var line telemetry.CycleEvent
	if err := json.Unmarshal([]byte(got.Streams[0].Values[0][1]), &line); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if line.CycleID != "c-1" || line.Error != "boom" {
		t.Errorf("line = %+v", line)
	}
}

func TestEmitter_NilEvent(t *testing.T) {
	if err := NewEmitter(NewClient("")).Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(nil) = %v", err)
	}
}
