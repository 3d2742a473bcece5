package traits

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"concord/pkg/query"
	"concord/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "trait_models", "t").
	Project("id", "ID").
	Project("label", "Label").
	Project("definition", "Definition").
	Project("examples", "Examples").
	Project("model_id", "ModelID").
	Project("enabled", "Enabled").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "Label"}

// Filters contains optional filtering criteria for trait model queries.
type Filters struct {
	Enabled *bool   `json:"enabled,omitempty"`
	ModelID *string `json:"model_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Enabled", f.Enabled).
		WhereEquals("ModelID", f.ModelID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if e := values.Get("enabled"); e != "" {
		if v, err := strconv.ParseBool(e); err == nil {
			f.Enabled = &v
		}
	}

	if m := values.Get("model_id"); m != "" {
		f.ModelID = &m
	}

	return f
}

func scanModel(s repository.Scanner) (Model, error) {
	var m Model
	var examplesRaw []byte

	err := s.Scan(
		&m.ID,
		&m.Label,
		&m.Definition,
		&examplesRaw,
		&m.ModelID,
		&m.Enabled,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return m, err
	}

	if len(examplesRaw) > 0 {
		if err := json.Unmarshal(examplesRaw, &m.Examples); err != nil {
			return m, fmt.Errorf("unmarshal examples: %w", err)
		}
	}

	if m.Examples == nil {
		m.Examples = []string{}
	}

	return m, nil
}
