// Package traits implements the trait-model registry for Concord. A trait
// model pairs a trait label with the definition, examples, and model id the
// oracle needs; enabled models drive expected-count computation for a scope.
package traits

import (
	"time"

	"github.com/google/uuid"
)

// Model represents one registered trait model.
type Model struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	Definition string    `json:"definition"`
	Examples   []string  `json:"examples"`
	ModelID    string    `json:"model_id"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to register a trait model.
// New models are enabled unless Disabled is set.
type CreateCommand struct {
	Label      string   `json:"label"`
	Definition string   `json:"definition"`
	Examples   []string `json:"examples"`
	ModelID    string   `json:"model_id"`
	Disabled   bool     `json:"disabled"`
}

// UpdateCommand carries updatable trait model fields. Nil fields are left unchanged.
type UpdateCommand struct {
	Definition *string   `json:"definition,omitempty"`
	Examples   *[]string `json:"examples,omitempty"`
	ModelID    *string   `json:"model_id,omitempty"`
}
