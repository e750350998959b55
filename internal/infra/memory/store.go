package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"majority-rules-service/internal/domain"
)

// Store is an in-memory implementation of app.Store, used for tests
// and for running without Postgres.
type Store struct {
	mu           sync.RWMutex
	participants map[string]map[string]string     // gameID -> participantID -> display name
	rounds       map[string]string                // roundID -> gameID
	responses    map[string]map[string]*domain.Response // roundID -> participantID -> response
	byID         map[string]*domain.Response      // responseID -> response
}

func NewStore() *Store {
	return &Store{
		participants: make(map[string]map[string]string),
		rounds:       make(map[string]string),
		responses:    make(map[string]map[string]*domain.Response),
		byID:         make(map[string]*domain.Response),
	}
}

func (s *Store) AddParticipant(_ context.Context, gameID, participantID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.participants[gameID]
	if !ok {
		game = make(map[string]string)
		s.participants[gameID] = game
	}
	game[participantID] = displayName
	return nil
}

func (s *Store) CreateRound(_ context.Context, roundID, gameID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[roundID] = gameID
	return nil
}

// UpsertResponse keeps one row per (round, participant); resubmissions
// overwrite the answer, never the points.
func (s *Store) UpsertResponse(_ context.Context, roundID, participantID, answer string, isAuto bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byParticipant, ok := s.responses[roundID]
	if !ok {
		byParticipant = make(map[string]*domain.Response)
		s.responses[roundID] = byParticipant
	}
	if existing, ok := byParticipant[participantID]; ok {
		existing.Answer = answer
		existing.IsAuto = isAuto
		return nil
	}
	resp := &domain.Response{
		ID:            uuid.NewString(),
		RoundID:       roundID,
		ParticipantID: participantID,
		Answer:        answer,
		IsAuto:        isAuto,
	}
	byParticipant[participantID] = resp
	s.byID[resp.ID] = resp
	return nil
}

func (s *Store) ListResponses(_ context.Context, roundID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byParticipant := s.responses[roundID]
	out := make([]domain.Response, 0, len(byParticipant))
	for _, resp := range byParticipant {
		out = append(out, *resp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

func (s *Store) SetPoints(_ context.Context, responseID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.byID[responseID]
	if !ok {
		return fmt.Errorf("response %s not found", responseID)
	}
	resp.Points = points
	return nil
}

// Leaderboard recomputes per-participant totals for a game, producing a
// zero row for participants with no scored responses.
func (s *Store) Leaderboard(_ context.Context, gameID string) ([]domain.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]int)
	for roundID, game := range s.rounds {
		if game != gameID {
			continue
		}
		for participantID, resp := range s.responses[roundID] {
			totals[participantID] += resp.Points
		}
	}

	rows := make([]domain.LeaderboardRow, 0, len(s.participants[gameID]))
	for participantID, displayName := range s.participants[gameID] {
		rows = append(rows, domain.LeaderboardRow{
			ParticipantID: participantID,
			DisplayName:   displayName,
			Points:        totals[participantID],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].ParticipantID < rows[j].ParticipantID
	})
	return rows, nil
}
