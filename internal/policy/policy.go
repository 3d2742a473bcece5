package policy

import (
	"fmt"

	"concord/internal/oracle"
)

// DefaultThreshold is the single confidence threshold above which a
// disagreeing oracle verdict is adopted. The historical two-threshold variant
// produced ambiguous agree-but-flag states and is deliberately superseded.
const DefaultThreshold = 0.80

// Engine evaluates the reconciliation decision matrix with a configured
// confidence threshold. The zero value is unusable; construct with New.
type Engine struct {
	threshold float64
}

// New creates an Engine. Thresholds outside (0,1] fall back to DefaultThreshold.
func New(threshold float64) Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return Engine{threshold: threshold}
}

// Threshold returns the configured confidence threshold.
func (e Engine) Threshold() float64 {
	return e.threshold
}

// Decide reconciles a prior score with an oracle response. callErr carries
// the oracle call failure, if any; on failure the prior score stands and the
// caller decides whether to retry. A disagreement is only adopted when the
// oracle's confidence is numeric and at least the threshold; anything less
// keeps the prior score and flags the trait for human review.
func (e Engine) Decide(prior int, resp *oracle.Response, callErr error) Decision {
	if callErr != nil || resp == nil {
		reason := "oracle call failed"
		if callErr != nil {
			reason = fmt.Sprintf("oracle call failed: %v", callErr)
		}
		return Decision{
			Action:     ActionNoChange,
			FinalScore: prior,
			Reason:     reason,
		}
	}

	oracleScore := resp.BinaryScore()
	if oracleScore == prior {
		return Decision{
			Action:     ActionAgree,
			FinalScore: prior,
			Reason:     "agreement",
		}
	}

	confidence, numeric := resp.Confidence.Value()
	if numeric && confidence >= e.threshold {
		action := ActionScoreRemoved
		if oracleScore == 1 {
			action = ActionScoreAdded
		}
		return Decision{
			Action:     action,
			FinalScore: oracleScore,
			Reason:     disagreementReason(resp, prior, oracleScore),
		}
	}

	return Decision{
		Action:         ActionHumanReviewRequired,
		FinalScore:     prior,
		Reason:         disagreementReason(resp, prior, oracleScore),
		RequiresReview: true,
	}
}

// RequiresReview is a projection of Decide: true iff the scores differ and
// the oracle's confidence is below the threshold (or non-numeric).
func (e Engine) RequiresReview(prior int, resp *oracle.Response) bool {
	if resp == nil || resp.BinaryScore() == prior {
		return false
	}
	confidence, numeric := resp.Confidence.Value()
	return !numeric || confidence < e.threshold
}

func disagreementReason(resp *oracle.Response, prior, oracleScore int) string {
	if resp.Rationale != "" {
		return resp.Rationale
	}
	return fmt.Sprintf(
		"oracle scored %d against prior %d with confidence %.2f",
		oracleScore, prior, float64(resp.Confidence),
	)
}
