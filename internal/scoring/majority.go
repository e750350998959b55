// Package scoring implements majority-vote scoring: every response
// matching the single most common normalized answer earns a fixed
// number of points, and nobody is awarded on a tie.
package scoring

import (
	"strings"

	"majority-rules-service/internal/domain"
)

// DefaultMajorityPoints is awarded to each majority response unless
// configured otherwise.
const DefaultMajorityPoints = 2

// Vote is one response considered by the tally.
type Vote struct {
	ResponseID    string
	ParticipantID string
	Answer        string
}

// Tally computes the majority outcome for one round. Answers are
// normalized by trimming whitespace and lower-casing before counting;
// the returned MajorityAnswer keeps the first submitter's original
// casing. Points per response id are returned alongside the result.
// Zero votes is a checked failure, not an assumption.
func Tally(roundID string, votes []Vote, majorityPoints int) (domain.MajorityResult, map[string]int, error) {
	if len(votes) == 0 {
		return domain.MajorityResult{}, nil, domain.ErrEmptyRound
	}
	if majorityPoints <= 0 {
		majorityPoints = DefaultMajorityPoints
	}

	counts := make(map[string]int, len(votes))
	for _, v := range votes {
		counts[normalize(v.Answer)]++
	}

	top := 0
	for _, n := range counts {
		if n > top {
			top = n
		}
	}
	leaders := 0
	winner := ""
	for answer, n := range counts {
		if n == top {
			leaders++
			winner = answer
		}
	}

	result := domain.MajorityResult{RoundID: roundID, IsTie: leaders > 1}
	points := make(map[string]int, len(votes))
	for _, v := range votes {
		points[v.ResponseID] = 0
	}
	if result.IsTie {
		return result, points, nil
	}

	displaySet := false
	for _, v := range votes {
		if normalize(v.Answer) != winner {
			continue
		}
		if !displaySet {
			result.MajorityAnswer = v.Answer
			displaySet = true
		}
		points[v.ResponseID] = majorityPoints
		result.AwardedParticipantIDs = append(result.AwardedParticipantIDs, v.ParticipantID)
	}
	return result, points, nil
}

func normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
