package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"majority-rules-service/internal/domain"
)

// Store persists games, participants, rounds, and responses in
// Postgres. It implements app.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) AddParticipant(ctx context.Context, gameID, participantID, displayName string) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO games (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, gameID); err != nil {
		return fmt.Errorf("ensure game: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (id, game_id, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`,
		participantID, gameID, displayName)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func (s *Store) CreateRound(ctx context.Context, roundID, gameID, questionID string) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO games (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, gameID); err != nil {
		return fmt.Errorf("ensure game: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rounds (id, game_id, question_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		roundID, gameID, questionID)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// UpsertResponse keeps the (round, participant) row unique; a resubmission
// replaces the answer but never touches points.
func (s *Store) UpsertResponse(ctx context.Context, roundID, participantID, answer string, isAuto bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO responses (id, round_id, participant_id, answer, is_auto)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (round_id, participant_id)
		DO UPDATE SET answer = EXCLUDED.answer, is_auto = EXCLUDED.is_auto, updated_at = now()`,
		uuid.NewString(), roundID, participantID, answer, isAuto)
	if err != nil {
		return fmt.Errorf("upsert response: %w", err)
	}
	return nil
}

func (s *Store) ListResponses(ctx context.Context, roundID string) ([]domain.Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, round_id, participant_id, answer, is_auto, points
		FROM responses
		WHERE round_id = $1
		ORDER BY participant_id ASC`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []domain.Response
	for rows.Next() {
		var r domain.Response
		if err := rows.Scan(&r.ID, &r.RoundID, &r.ParticipantID, &r.Answer, &r.IsAuto, &r.Points); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetPoints(ctx context.Context, responseID string, points int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE responses SET points = $2, updated_at = now() WHERE id = $1`, responseID, points)
	if err != nil {
		return fmt.Errorf("set points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("response %s not found", responseID)
	}
	return nil
}

// Leaderboard aggregates points per participant of a game; the LEFT
// JOIN keeps zero-response participants in the output.
func (s *Store) Leaderboard(ctx context.Context, gameID string) ([]domain.LeaderboardRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.display_name, COALESCE(SUM(r.points), 0) AS points
		FROM participants p
		LEFT JOIN responses r
			ON r.participant_id = p.id
			AND r.round_id IN (SELECT id FROM rounds WHERE game_id = $1)
		WHERE p.game_id = $1
		GROUP BY p.id, p.display_name
		ORDER BY points DESC, p.id ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardRow
	for rows.Next() {
		var row domain.LeaderboardRow
		if err := rows.Scan(&row.ParticipantID, &row.DisplayName, &row.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
