package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auriga-os/emonk/internal/models"
	"github.com/auriga-os/emonk/internal/scheduler"
)

// ReminderInput is the JSON payload the LLM submits for schedule_reminder.
type ReminderInput struct {
	Message   string `json:"message"`
	AtRFC3339 string `json:"at"` // one-shot fire time, RFC3339
	SessionID string `json:"session_id,omitempty"` // conversation to deliver into; defaults to the caller's session
}

// ReminderDescriptor advertises schedule_reminder to the LLM.
var ReminderDescriptor = models.SkillDescriptor{
	Name:        "schedule_reminder",
	Description: "Schedule a one-shot reminder message to be delivered at a future time.",
	InputSchema: `{"type":"object","required":["message","at"],"properties":{"message":{"type":"string"},"at":{"type":"string","format":"date-time"},"session_id":{"type":"string"}}}`,
}

// NewReminderHandler returns a skill handler that schedules a "reminder" job
// through api for a single future fire time, exercising JobAPI end to end.
func NewReminderHandler(api *scheduler.JobAPI) func(ctx context.Context, input string) (string, error) {
	return func(ctx context.Context, input string) (string, error) {
		var in ReminderInput
		if err := json.Unmarshal([]byte(input), &in); err != nil {
			return "", fmt.Errorf("schedule_reminder: invalid input: %w", err)
		}
		if in.Message == "" {
			return "", fmt.Errorf("schedule_reminder: message is required")
		}
		at, err := time.Parse(time.RFC3339, in.AtRFC3339)
		if err != nil {
			return "", fmt.Errorf("schedule_reminder: invalid 'at' timestamp: %w", err)
		}

		sessionID := in.SessionID
		if sessionID == "" {
			sessionID = "default"
		}
		payload, err := json.Marshal(map[string]string{"message": in.Message, "session_id": sessionID})
		if err != nil {
			return "", fmt.Errorf("schedule_reminder: encode payload: %w", err)
		}

		id, err := api.Schedule(ctx, "reminder", payload, models.Schedule{
			Kind: models.ScheduleAt,
			At:   at,
		}, models.DefaultMaxAttempts)
		if err != nil {
			return "", fmt.Errorf("schedule_reminder: %w", err)
		}
		return fmt.Sprintf(`{"job_id":%q,"fires_at":%q}`, id, at.Format(time.RFC3339)), nil
	}
}
