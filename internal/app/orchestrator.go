package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"majority-rules-service/internal/domain"
)

// Broadcaster is the only capability the orchestrator needs from the
// connection layer.
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, event any)
}

// AnswerSink persists a recorded answer. Auto-filled answers flow
// through the same sink as live submissions.
type AnswerSink func(ctx context.Context, roundID, playerID, answer string, isAuto bool) error

// StartRequest carries everything needed to open a round.
type StartRequest struct {
	RoundID    string
	Room       string
	QuestionID string
	Duration   int // seconds
	Players    []string
	Options    []string // empty means free-text; auto-fill uses ""
}

// Orchestrator owns every active round and runs each countdown as an
// independent goroutine. A round id maps to at most one live round; a
// finalized round cannot be resumed, re-finalized, or re-answered.
type Orchestrator struct {
	broadcaster Broadcaster
	sink        AnswerSink
	clock       clockwork.Clock
	onFinalized func(ctx context.Context, room, roundID string)

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu     sync.Mutex
	rounds map[string]*round
}

type round struct {
	id         string
	room       string
	questionID string
	duration   int
	players    map[string]struct{}
	options    []string
	done       chan struct{}

	mu      sync.Mutex
	closed  bool
	answers map[string]domain.RecordedAnswer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects a clock; tests pass a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithRand injects the random source used for auto-fill.
func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) { o.rnd = r }
}

// WithAnswerSink persists every recorded answer through sink.
func WithAnswerSink(sink AnswerSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithFinalizeHook runs fn exactly once per round, after the results
// broadcast and before the id is released. The scoring layer hangs off
// this hook.
func WithFinalizeHook(fn func(ctx context.Context, room, roundID string)) Option {
	return func(o *Orchestrator) { o.onFinalized = fn }
}

func NewOrchestrator(broadcaster Broadcaster, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		broadcaster: broadcaster,
		clock:       clockwork.NewRealClock(),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		rounds:      make(map[string]*round),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartRound creates round state and spawns its countdown goroutine.
// The caller does not wait for the round; use WaitForRound to join it.
func (o *Orchestrator) StartRound(_ context.Context, req StartRequest) error {
	if req.Duration <= 0 {
		return fmt.Errorf("round %s: duration must be positive, got %d", req.RoundID, req.Duration)
	}

	players := make(map[string]struct{}, len(req.Players))
	for _, p := range req.Players {
		players[p] = struct{}{}
	}
	r := &round{
		id:         req.RoundID,
		room:       req.Room,
		questionID: req.QuestionID,
		duration:   req.Duration,
		players:    players,
		options:    append([]string(nil), req.Options...),
		done:       make(chan struct{}),
		answers:    make(map[string]domain.RecordedAnswer),
	}

	o.mu.Lock()
	if _, exists := o.rounds[req.RoundID]; exists {
		o.mu.Unlock()
		return fmt.Errorf("round %s: %w", req.RoundID, domain.ErrDuplicateRound)
	}
	o.rounds[req.RoundID] = r
	o.mu.Unlock()

	go o.run(r)
	return nil
}

// SubmitAnswer upserts a player's answer while the round is open.
// Last write wins; players may resubmit before expiry.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, roundID, playerID, answer string) error {
	o.mu.Lock()
	r, ok := o.rounds[roundID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("round %s: %w", roundID, domain.ErrRoundNotFound)
	}
	if _, member := r.players[playerID]; !member {
		return fmt.Errorf("player %s in round %s: %w", playerID, roundID, domain.ErrPlayerNotInRound)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("round %s: %w", roundID, domain.ErrRoundNotFound)
	}
	r.answers[playerID] = domain.RecordedAnswer{Value: answer}
	r.mu.Unlock()

	if o.sink != nil {
		if err := o.sink(ctx, roundID, playerID, answer, false); err != nil {
			return fmt.Errorf("record answer for %s: %w", playerID, err)
		}
	}
	return nil
}

// WaitForRound blocks until the round's goroutine completes. It is a
// no-op for unknown or already finalized rounds.
func (o *Orchestrator) WaitForRound(ctx context.Context, roundID string) {
	o.mu.Lock()
	r, ok := o.rounds[roundID]
	o.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-r.done:
	case <-ctx.Done():
	}
}

// ActiveRounds reports how many rounds are currently running.
func (o *Orchestrator) ActiveRounds() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.rounds)
}

func (o *Orchestrator) run(r *round) {
	ctx := context.Background()

	log.Debug().Str("round_id", r.id).Str("room", r.room).Int("duration", r.duration).Msg("round started")
	o.broadcaster.Broadcast(ctx, r.room, domain.NewRoundStarted(r.id, r.questionID, r.duration, sortedKeys(r.players)))

	for remaining := r.duration; remaining >= 1; remaining-- {
		o.broadcaster.Broadcast(ctx, r.room, domain.NewCountdownTick(r.id, remaining))
		o.clock.Sleep(time.Second)
	}

	o.finalize(ctx, r)
}

// finalize runs exactly once per round: auto-fill, results broadcast,
// the finalize hook, then removal from the active table.
func (o *Orchestrator) finalize(ctx context.Context, r *round) {
	type autoFill struct {
		playerID string
		answer   string
	}

	r.mu.Lock()
	r.closed = true
	var filled []autoFill
	for playerID := range r.players {
		if _, ok := r.answers[playerID]; ok {
			continue
		}
		answer := o.autoAnswer(r.options)
		r.answers[playerID] = domain.RecordedAnswer{Value: answer, IsAuto: true}
		filled = append(filled, autoFill{playerID: playerID, answer: answer})
	}
	results := make([]domain.RoundResult, 0, len(r.answers))
	for playerID, rec := range r.answers {
		results = append(results, domain.RoundResult{
			PlayerID:        playerID,
			Answer:          rec.Value,
			IsAutoSubmitted: rec.IsAuto,
		})
	}
	r.mu.Unlock()

	sort.Slice(results, func(i, j int) bool { return results[i].PlayerID < results[j].PlayerID })

	if o.sink != nil {
		for _, f := range filled {
			if err := o.sink(ctx, r.id, f.playerID, f.answer, true); err != nil {
				log.Warn().Err(err).Str("round_id", r.id).Str("player_id", f.playerID).Msg("auto-fill answer not persisted")
			}
		}
	}

	o.broadcaster.Broadcast(ctx, r.room, domain.NewRoundResults(r.id, r.questionID, results))

	log.Debug().Str("round_id", r.id).Int("auto_filled", len(filled)).Msg("round finalized")

	if o.onFinalized != nil {
		o.onFinalized(ctx, r.room, r.id)
	}

	// The id stays claimed until the hook completes, so a restart of the
	// same id cannot race a finalize still in flight.
	o.mu.Lock()
	delete(o.rounds, r.id)
	o.mu.Unlock()
	close(r.done)
}

func (o *Orchestrator) autoAnswer(options []string) string {
	if len(options) == 0 {
		return ""
	}
	o.rndMu.Lock()
	defer o.rndMu.Unlock()
	return options[o.rnd.Intn(len(options))]
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
