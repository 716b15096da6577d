package models

import "time"

// SystemKV is a single system-scoped configuration key-value pair, used for
// small operational state (schema version markers, resolved API keys,
// last-tick bookkeeping) that doesn't belong in a Job Record or Conversation.
type SystemKV struct {
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Version  int       `json:"version"`
	DateTime time.Time `json:"datetime"`
}
