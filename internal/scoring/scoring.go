// Package scoring computes normalized 0-100 compatibility scores.
// All functions are pure: same inputs always produce the same score, so
// discovery, swipe recording and profile views can recompute freely and
// stay in agreement.
package scoring

import (
	"github.com/heartbeam/heartbeam/internal/db"
)

// DefaultAge substitutes for a user whose own age is unknown while the
// target's age is known.
const DefaultAge = 25

// Neutral is the fallback score when a sub-factor has no usable inputs.
const Neutral = 50

// AgeScore rates how close targetAge sits to the midpoint of the actor's
// preferred range [minPref, maxPref]. Outside the range scores 0. Inside,
// the score decays linearly with distance from the midpoint, then scales
// by importance/5.
func AgeScore(userAge, targetAge, minPref, maxPref, importance int) int {
	if targetAge < minPref || targetAge > maxPref {
		return 0
	}

	ideal := float64(minPref+maxPref) / 2
	diff := float64(targetAge) - ideal
	if diff < 0 {
		diff = -diff
	}
	rangeSize := maxPref - minPref

	if rangeSize == 0 {
		// Zero-width range: perfect score only on the exact age.
		if diff == 0 {
			return 100
		}
		return 0
	}

	raw := 100 - diff/float64(rangeSize)*100
	return clamp(int(raw * float64(importance) / 5))
}

// InterestScore is the Jaccard similarity of the two interest-id sets as a
// percentage, scaled by importance/5. Either side empty scores Neutral.
func InterestScore(userInterests, targetInterests []uint64, importance int) int {
	if len(userInterests) == 0 || len(targetInterests) == 0 {
		return Neutral
	}

	set := make(map[uint64]struct{}, len(userInterests))
	for _, id := range userInterests {
		set[id] = struct{}{}
	}

	intersection := 0
	union := len(set)
	seen := make(map[uint64]struct{}, len(targetInterests))
	for _, id := range targetInterests {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := set[id]; ok {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return Neutral
	}

	raw := float64(intersection) / float64(union) * 100
	return clamp(int(raw * float64(importance) / 5))
}

// RelationshipGoalScore rates goal alignment:
// exact match 100, either side unsure 75, serious vs casual 20 (explicit
// incompatibility), anything else 50. Either side unset scores Neutral
// unscaled; otherwise the result scales by importance/5.
func RelationshipGoalScore(userGoal, targetGoal string, importance int) int {
	if userGoal == "" || targetGoal == "" {
		return Neutral
	}

	var raw int
	switch {
	case userGoal == targetGoal:
		raw = 100
	case userGoal == db.GoalUnsure || targetGoal == db.GoalUnsure:
		raw = 75
	case (userGoal == db.GoalSerious && targetGoal == db.GoalCasual) ||
		(userGoal == db.GoalCasual && targetGoal == db.GoalSerious):
		raw = 20
	default:
		raw = 50
	}

	return clamp(int(float64(raw) * float64(importance) / 5))
}

// Input carries everything OverallScore needs, pre-fetched by the caller.
type Input struct {
	UserAge        int
	UserAgeKnown   bool
	TargetAge      int
	TargetAgeKnown bool

	MinAgePreference int
	MaxAgePreference int

	UserInterests   []uint64
	TargetInterests []uint64

	UserGoal   string
	TargetGoal string

	AgeImportance      int
	InterestImportance int
	GoalImportance     int
}

// OverallScore combines the computable sub-scores into one weighted
// average: sum(score_i * weight_i) / sum(weight_i). The age factor only
// participates when the target's age is known; a missing user age falls
// back to DefaultAge. With nothing computable the result is Neutral.
func OverallScore(in Input) int {
	var totalWeighted, totalWeight int

	if in.TargetAgeKnown {
		userAge := in.UserAge
		if !in.UserAgeKnown {
			userAge = DefaultAge
		}
		s := AgeScore(userAge, in.TargetAge, in.MinAgePreference, in.MaxAgePreference, in.AgeImportance)
		totalWeighted += s * in.AgeImportance
		totalWeight += in.AgeImportance
	}

	s := InterestScore(in.UserInterests, in.TargetInterests, in.InterestImportance)
	totalWeighted += s * in.InterestImportance
	totalWeight += in.InterestImportance

	s = RelationshipGoalScore(in.UserGoal, in.TargetGoal, in.GoalImportance)
	totalWeighted += s * in.GoalImportance
	totalWeight += in.GoalImportance

	if totalWeight == 0 {
		return Neutral
	}

	return clamp(totalWeighted / totalWeight)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
