// Package oracle implements the HTTP client for the external classification
// oracle. The oracle offers a second opinion on whether a trait is present in
// a piece of text; concord reconciles that opinion against the prior score.
package oracle

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Mode selects the oracle's evaluation mode.
type Mode string

const (
	// ModeBasic evaluates the text alone.
	ModeBasic Mode = "basic"
	// ModeContext evaluates the text with project and concept context attached.
	ModeContext Mode = "context"
)

// Request is the JSON body sent to the oracle's classify endpoint.
type Request struct {
	Text            string   `json:"text"`
	TraitLabel      string   `json:"trait_label"`
	TraitDefinition string   `json:"trait_definition"`
	TraitExamples   []string `json:"trait_examples,omitempty"`
	Mode            Mode     `json:"mode"`
	ProjectContext  string   `json:"project_context,omitempty"`
	ConceptContext  string   `json:"concept_context,omitempty"`
}

// Confidence is the oracle's self-reported certainty in [0,1]. Some oracle
// deployments serialize it as a JSON string; Confidence coerces either form.
// A non-numeric value decodes to NaN so the policy treats it as below any
// threshold instead of silently adopting a disputed score.
type Confidence float64

// UnmarshalJSON accepts a JSON number or a numeric string.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Confidence(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*c = Confidence(math.NaN())
		return nil
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*c = Confidence(math.NaN())
		return nil
	}

	*c = Confidence(n)
	return nil
}

// Value returns the confidence as a float64 and whether it is numeric.
func (c Confidence) Value() (float64, bool) {
	f := float64(c)
	return f, !math.IsNaN(f)
}

// Response is the oracle's verdict for one trait on one text.
type Response struct {
	Present    bool       `json:"present"`
	Confidence Confidence `json:"confidence"`
	Rationale  string     `json:"rationale"`
	Score      float64    `json:"score"`
}

// BinaryScore maps the oracle's boolean verdict onto the {0,1} scale used by
// prior scores.
func (r *Response) BinaryScore() int {
	if r.Present {
		return 1
	}
	return 0
}
