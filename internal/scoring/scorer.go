package scoring

import (
	"context"
	"fmt"

	"majority-rules-service/internal/domain"
)

// ResponseStore is the slice of the relational store the scorer needs.
type ResponseStore interface {
	ListResponses(ctx context.Context, roundID string) ([]domain.Response, error)
	SetPoints(ctx context.Context, responseID string, points int) error
}

// Scorer loads a closed round's responses, tallies the majority vote,
// and writes a point value back per response. The caller must invoke
// ScoreRound at most once per round; points are never revised here.
type Scorer struct {
	store          ResponseStore
	majorityPoints int
}

func NewScorer(store ResponseStore, majorityPoints int) *Scorer {
	if majorityPoints <= 0 {
		majorityPoints = DefaultMajorityPoints
	}
	return &Scorer{store: store, majorityPoints: majorityPoints}
}

func (s *Scorer) ScoreRound(ctx context.Context, roundID string) (domain.MajorityResult, error) {
	responses, err := s.store.ListResponses(ctx, roundID)
	if err != nil {
		return domain.MajorityResult{}, fmt.Errorf("list responses for round %s: %w", roundID, err)
	}

	votes := make([]Vote, 0, len(responses))
	for _, r := range responses {
		votes = append(votes, Vote{ResponseID: r.ID, ParticipantID: r.ParticipantID, Answer: r.Answer})
	}

	result, points, err := Tally(roundID, votes, s.majorityPoints)
	if err != nil {
		return domain.MajorityResult{}, err
	}

	for responseID, p := range points {
		if err := s.store.SetPoints(ctx, responseID, p); err != nil {
			return domain.MajorityResult{}, fmt.Errorf("set points on response %s: %w", responseID, err)
		}
	}
	return result, nil
}
