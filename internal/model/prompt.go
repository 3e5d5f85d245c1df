package model

import "time"

// SavedPrompt is a named prompt version. Saving an existing name replaces its
// text but keeps its ID and CreatedAt.
type SavedPrompt struct {
	ID        string    `json:"id" yaml:"id,omitempty"`
	Name      string    `json:"name" yaml:"name"`
	Text      string    `json:"text" yaml:"text"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Setting keys understood by the harness.
const (
	SettingModel        = "model"
	SettingActivePrompt = "active_prompt"
)
