// Package policy implements the reconciliation policy: the pure decision
// matrix that merges a prior binary score and an oracle verdict into one
// final verdict plus a review flag.
package policy

// Action labels the outcome of reconciling a prior score with an oracle verdict.
type Action string

const (
	// ActionAgree records that the oracle confirmed the prior score.
	ActionAgree Action = "agree"
	// ActionScoreAdded records a confident disagreement adopting presence (0 -> 1).
	ActionScoreAdded Action = "score_added"
	// ActionScoreRemoved records a confident disagreement adopting absence (1 -> 0).
	ActionScoreRemoved Action = "score_removed"
	// ActionHumanReviewRequired records a disagreement too uncertain to adopt.
	ActionHumanReviewRequired Action = "human_review_required"
	// ActionNoChange records that the oracle call failed and the prior score stands.
	ActionNoChange Action = "no_change"
	// ActionHumanCorrected records a manual adjudication of a flagged verdict.
	// It is never produced by Decide; the review-resolution flow appends it.
	ActionHumanCorrected Action = "human_corrected"
)

// Decision is the output of the reconciliation policy. It is derived solely
// from the prior score and the oracle response and carries no side effects.
type Decision struct {
	Action         Action `json:"action"`
	FinalScore     int    `json:"final_score"`
	Reason         string `json:"reason"`
	RequiresReview bool   `json:"requires_review"`
}

// Disagreed reports whether the decision adopted the oracle's side of a
// disagreement.
func (d Decision) Disagreed() bool {
	return d.Action == ActionScoreAdded || d.Action == ActionScoreRemoved
}
