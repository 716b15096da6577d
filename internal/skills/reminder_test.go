package skills

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/auriga-os/emonk/internal/clock"
	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/jobstore/jsonstore"
	"github.com/auriga-os/emonk/internal/scheduler"
)

func newTestJobAPI(t *testing.T) (*scheduler.JobAPI, jobstore.Store) {
	t.Helper()
	store, err := jsonstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("jsonstore.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := scheduler.NewRegistry()
	registry.Register("reminder", func(context.Context, []byte) error { return nil })

	clk := clock.NewFake(time.Now().UTC())
	return scheduler.NewJobAPI(store, registry, clk), store
}

func TestReminderHandler_SchedulesJob(t *testing.T) {
	api, store := newTestJobAPI(t)
	handler := NewReminderHandler(api)

	at := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	input := `{"message":"water the plants","at":"` + at + `"}`

	out, err := handler(context.Background(), input)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	var result struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("unmarshal handler output: %v", err)
	}
	if result.JobID == "" {
		t.Fatal("expected a non-empty job id")
	}

	job, err := store.Get(context.Background(), result.JobID)
	if err != nil {
		t.Fatalf("Get scheduled job: %v", err)
	}
	if job.Kind != "reminder" {
		t.Errorf("Kind = %q, want reminder", job.Kind)
	}
}

func TestReminderHandler_RejectsMissingMessage(t *testing.T) {
	api, _ := newTestJobAPI(t)
	handler := NewReminderHandler(api)

	_, err := handler(context.Background(), `{"at":"2099-01-01T00:00:00Z"}`)
	if err == nil {
		t.Fatal("expected an error for a missing message")
	}
}

func TestReminderHandler_RejectsBadTimestamp(t *testing.T) {
	api, _ := newTestJobAPI(t)
	handler := NewReminderHandler(api)

	_, err := handler(context.Background(), `{"message":"hi","at":"not-a-time"}`)
	if err == nil {
		t.Fatal("expected an error for a malformed timestamp")
	}
}
