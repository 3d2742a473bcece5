package items

import (
	"net/url"
	"strconv"

	"concord/pkg/query"
	"concord/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "items", "i").
	Project("id", "ID").
	Project("name", "Name").
	Project("content", "Content").
	Project("project_context", "ProjectContext").
	Project("concept_context", "ConceptContext").
	Project("status", "Status").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var auditProjection = query.
	NewProjectionMap("public", "trait_audits", "a").
	Project("id", "ID").
	Project("item_id", "ItemID").
	Project("trait", "Trait").
	Project("prior_score", "PriorScore").
	Project("oracle_present", "OraclePresent").
	Project("oracle_confidence", "OracleConfidence").
	Project("oracle_rationale", "OracleRationale").
	Project("final_score", "FinalScore").
	Project("action", "Action").
	Project("batch_type", "BatchType").
	Project("corrected_by", "CorrectedBy").
	Project("corrected_at", "CorrectedAt").
	Project("created_at", "CreatedAt")

var auditSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for item queries.
// Nil fields are ignored. Trait narrows to items carrying the given trait;
// Review narrows to items with (true) or without (false) pending review tags.
type Filters struct {
	Status *string `json:"status,omitempty"`
	Trait  *string `json:"trait,omitempty"`
	Review *bool   `json:"review,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	b.WhereEquals("Status", f.Status)

	if f.Trait != nil && *f.Trait != "" {
		b.Where("EXISTS (SELECT 1 FROM item_traits t WHERE t.item_id = i.id AND t.trait = $%d)", *f.Trait)
	}

	if f.Review != nil {
		clause := "EXISTS (SELECT 1 FROM review_tags rt WHERE rt.item_id = i.id)"
		if !*f.Review {
			clause = "NOT " + clause
		}
		b.Where(clause)
	}

	return b
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s == StatusUnprocessed || s == StatusProcessed {
		f.Status = &s
	}

	if trait := values.Get("trait"); trait != "" {
		f.Trait = &trait
	}

	if r := values.Get("review"); r != "" {
		if review, err := strconv.ParseBool(r); err == nil {
			f.Review = &review
		}
	}

	return f
}

func scanItem(s repository.Scanner) (Item, error) {
	var i Item
	err := s.Scan(
		&i.ID,
		&i.Name,
		&i.Content,
		&i.ProjectContext,
		&i.ConceptContext,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanAudit(s repository.Scanner) (AuditRecord, error) {
	var a AuditRecord
	err := s.Scan(
		&a.ID,
		&a.ItemID,
		&a.Trait,
		&a.PriorScore,
		&a.OraclePresent,
		&a.OracleConfidence,
		&a.OracleRationale,
		&a.FinalScore,
		&a.Action,
		&a.BatchType,
		&a.CorrectedBy,
		&a.CorrectedAt,
		&a.CreatedAt,
	)
	return a, err
}

func scanLabel(s repository.Scanner) (string, error) {
	var label string
	err := s.Scan(&label)
	return label, err
}
