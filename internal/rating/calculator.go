// Package rating holds the pure scoring math: initial profile score,
// Elo-style like/dislike deltas, and the event bonuses. Nothing here
// touches storage; callers read scores, call in, and persist the result.
package rating

import "math"

const (
	// BaseScore is the anchor every profile starts from.
	BaseScore = 800.0
	// MaxBonus is the ceiling of the completeness bonus on top of BaseScore.
	MaxBonus = 200.0

	// DefaultKFactor is the Elo K used for like/dislike deltas.
	DefaultKFactor = 32.0
	// DefaultMinScore is the floor applied before any score is persisted.
	DefaultMinScore = 100.0

	weightCompleteness = 0.30
	weightBio          = 0.20
	weightPhotos       = 0.25

	// nonMaleMultiplier is carried over from the legacy formula, which
	// scaled the completeness bonus by 0.9 for every non-male profile.
	// Kept as a single constant so it can be set to 1.0 to remove it.
	nonMaleMultiplier = 0.9

	matchBonusFlat = 25.0
	matchBonusPull = 0.05

	chatBonusFlat  = 10.0
	chatBonusShare = 0.1

	referralBonusBase = 50.0
	referralBonusCap  = 250.0
)

// Profile is the slice of profile data the initial-score formula reads.
type Profile struct {
	FirstName  string
	LastName   string
	Age        int
	City       string
	Bio        string
	Gender     string
	PhotoCount int
}

// InitialScore computes the starting score of a freshly completed profile.
//
// Weighted terms: field completeness (first name, last name, age, city at a
// quarter of the 0.30 slot each), bio presence (0.20), and a photo-count
// tier on the 0.25 slot. The weighted sum is clamped to [0, 1] and scaled
// into the 200-point bonus band.
func InitialScore(p Profile) float64 {
	var completeness float64
	if p.FirstName != "" {
		completeness += 0.25
	}
	if p.LastName != "" {
		completeness += 0.25
	}
	if p.Age > 0 {
		completeness += 0.25
	}
	if p.City != "" {
		completeness += 0.25
	}

	sum := completeness * weightCompleteness
	if p.Bio != "" {
		sum += weightBio
	}
	sum += photoTier(p.PhotoCount) * weightPhotos

	if p.Gender != "male" {
		sum *= nonMaleMultiplier
	}

	return math.Round(BaseScore + MaxBonus*clamp01(sum))
}

func photoTier(n int) float64 {
	switch {
	case n >= 3:
		return 1.0
	case n == 2:
		return 0.5
	case n == 1:
		return 0.2
	default:
		return 0
	}
}

// ExpectedScore is the logistic Elo expectation of a beating b,
// rounded to 2 decimals.
func ExpectedScore(a, b float64) float64 {
	return round2(1 / (1 + math.Pow(10, (b-a)/400)))
}

// LikeDelta is the score change applied to the rated user when the rater
// likes them: k × (1 − ExpectedScore(rater, rated)), rounded to 2 decimals.
// At equal scores this is k/2; the stronger the rated user relative to the
// rater, the larger the delta.
func LikeDelta(raterScore, ratedScore, k float64) float64 {
	return round2(k * (1 - ExpectedScore(raterScore, ratedScore)))
}

// DislikeDelta is the (non-positive) score change applied to the rated user
// when the rater dislikes them: k × (−ExpectedScore(rater, rated)).
func DislikeDelta(raterScore, ratedScore, k float64) float64 {
	return round2(k * -ExpectedScore(raterScore, ratedScore))
}

// MatchBonus returns the new score after a match: a flat bonus plus a small
// pull toward the partner's score.
func MatchBonus(oldScore, partnerScore float64) float64 {
	return oldScore + matchBonusFlat + matchBonusPull*(partnerScore-oldScore)
}

// ReferralBonus returns the new score after a successful referral. The
// bonus shrinks as the score grows and never exceeds the cap.
func ReferralBonus(oldScore float64) float64 {
	return oldScore + math.Min(referralBonusBase/(1+oldScore/1000), referralBonusCap)
}

// ChatOpenBonus returns the new score after a chat is opened with a partner.
func ChatOpenBonus(oldScore, partnerScore float64) float64 {
	return oldScore + chatBonusFlat + chatBonusShare*(oldScore+partnerScore)
}

// Floor clamps a computed score to the configured minimum. Every score goes
// through this before being persisted.
func Floor(score, minScore float64) float64 {
	if score < minScore {
		return minScore
	}
	return score
}

func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
