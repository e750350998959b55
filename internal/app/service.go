package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"majority-rules-service/internal/domain"
	"majority-rules-service/internal/gameflow"
	"majority-rules-service/internal/scoring"
)

// Store is the relational collaborator the service persists through.
type Store interface {
	AddParticipant(ctx context.Context, gameID, participantID, displayName string) error
	CreateRound(ctx context.Context, roundID, gameID, questionID string) error
	UpsertResponse(ctx context.Context, roundID, participantID, answer string, isAuto bool) error
	ListResponses(ctx context.Context, roundID string) ([]domain.Response, error)
	SetPoints(ctx context.Context, responseID string, points int) error
	Leaderboard(ctx context.Context, gameID string) ([]domain.LeaderboardRow, error)
}

// ServiceConfig tunes scoring and game flow.
type ServiceConfig struct {
	MajorityPoints    int
	FinalistThreshold int
}

// GameService is the caller surface of the round core: it relays start
// and submit requests into the orchestrator, and on every finalized
// round scores it exactly once, pushes fresh standings to the room, and
// advances the game's phase machine. A room doubles as the game id.
type GameService struct {
	orchestrator *Orchestrator
	broadcaster  Broadcaster
	store        Store
	scorer       *scoring.Scorer
	cfg          ServiceConfig

	lb singleflight.Group

	flowMu sync.Mutex
	flows  map[string]*gameflow.Flow
}

// StartRoundRequest is the external form of a round start; the game id
// names the broadcast room.
type StartRoundRequest struct {
	GameID     string
	RoundID    string
	QuestionID string
	Duration   int
	Players    []string
	Options    []string
}

func NewGameService(broadcaster Broadcaster, store Store, cfg ServiceConfig, opts ...Option) *GameService {
	if cfg.MajorityPoints <= 0 {
		cfg.MajorityPoints = scoring.DefaultMajorityPoints
	}
	if cfg.FinalistThreshold < 1 {
		cfg.FinalistThreshold = 3
	}
	s := &GameService{
		broadcaster: broadcaster,
		store:       store,
		scorer:      scoring.NewScorer(store, cfg.MajorityPoints),
		cfg:         cfg,
		flows:       make(map[string]*gameflow.Flow),
	}
	opts = append(opts,
		WithAnswerSink(store.UpsertResponse),
		WithFinalizeHook(s.handleRoundFinalized),
	)
	s.orchestrator = NewOrchestrator(broadcaster, opts...)
	return s
}

// Join registers a participant of a game so the leaderboard produces a
// row for them even before they score.
func (s *GameService) Join(ctx context.Context, gameID, playerID, displayName string) error {
	if err := s.store.AddParticipant(ctx, gameID, playerID, displayName); err != nil {
		return fmt.Errorf("join game %s: %w", gameID, err)
	}
	s.flowFor(gameID).AddParticipant(playerID)
	return nil
}

// StartRound persists the round row and opens the countdown.
func (s *GameService) StartRound(ctx context.Context, req StartRoundRequest) error {
	if err := s.store.CreateRound(ctx, req.RoundID, req.GameID, req.QuestionID); err != nil {
		return fmt.Errorf("create round %s: %w", req.RoundID, err)
	}
	return s.orchestrator.StartRound(ctx, StartRequest{
		RoundID:    req.RoundID,
		Room:       req.GameID,
		QuestionID: req.QuestionID,
		Duration:   req.Duration,
		Players:    req.Players,
		Options:    req.Options,
	})
}

// SubmitAnswer relays a player's answer into the open round.
func (s *GameService) SubmitAnswer(ctx context.Context, roundID, playerID, answer string) error {
	return s.orchestrator.SubmitAnswer(ctx, roundID, playerID, answer)
}

// WaitForRound blocks until the round has finalized.
func (s *GameService) WaitForRound(ctx context.Context, roundID string) {
	s.orchestrator.WaitForRound(ctx, roundID)
}

// Leaderboard recomputes standings from the store. Concurrent requests
// for the same game collapse into one query; nothing is cached.
func (s *GameService) Leaderboard(ctx context.Context, gameID string) ([]domain.LeaderboardRow, error) {
	v, err, _ := s.lb.Do(gameID, func() (any, error) {
		return s.store.Leaderboard(ctx, gameID)
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard for game %s: %w", gameID, err)
	}
	return v.([]domain.LeaderboardRow), nil
}

// Flow returns the phase machine snapshot for a game.
func (s *GameService) Flow(gameID string) gameflow.State {
	return s.flowFor(gameID).Snapshot()
}

// handleRoundFinalized runs once per round, after the results broadcast.
// Scoring failures are logged, never retried; the countdown core has
// already completed by the time this runs.
func (s *GameService) handleRoundFinalized(ctx context.Context, gameID, roundID string) {
	result, err := s.scorer.ScoreRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyRound) {
			log.Warn().Str("round_id", roundID).Msg("round closed without responses, nothing to score")
		} else {
			log.Error().Err(err).Str("round_id", roundID).Msg("scoring failed")
		}
		return
	}
	log.Info().
		Str("round_id", roundID).
		Str("majority_answer", result.MajorityAnswer).
		Bool("tie", result.IsTie).
		Int("awarded", len(result.AwardedParticipantIDs)).
		Msg("round scored")

	s.advanceFlow(gameID, result)

	rows, err := s.Leaderboard(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("leaderboard recompute failed")
		return
	}
	s.broadcaster.Broadcast(ctx, gameID, domain.NewLeaderboard(gameID, rows))
}

func (s *GameService) advanceFlow(gameID string, result domain.MajorityResult) {
	scores := make(map[string]int, len(result.AwardedParticipantIDs))
	for _, participantID := range result.AwardedParticipantIDs {
		scores[participantID] = s.cfg.MajorityPoints
	}
	state, err := s.flowFor(gameID).RecordRound(scores)
	if err != nil {
		log.Debug().Err(err).Str("game_id", gameID).Msg("flow did not advance")
		return
	}
	if state.Phase == gameflow.PhaseChampionship {
		log.Info().Str("game_id", gameID).Strs("finalists", state.Finalists).Msg("championship reached")
	}
}

func (s *GameService) flowFor(gameID string) *gameflow.Flow {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	flow, ok := s.flows[gameID]
	if !ok {
		flow, _ = gameflow.New(nil, s.cfg.FinalistThreshold)
		s.flows[gameID] = flow
	}
	return flow
}
