// Package gameflow tracks a game's progression from lobby through
// general rounds to the championship. It is driven by per-round score
// totals and is deliberately decoupled from round timing.
package gameflow

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Phase is a game lifecycle stage.
type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhaseGeneralRound Phase = "general_round"
	PhaseChampionship Phase = "championship"
	PhaseComplete     Phase = "complete"
)

var (
	// ErrWrongPhase is returned when an operation is invalid in the current phase.
	ErrWrongPhase = errors.New("operation not allowed in current phase")
	// ErrNotEnoughFinalists is returned when the championship cannot seat enough players.
	ErrNotEnoughFinalists = errors.New("not enough finalists to start the championship")
)

// State is a snapshot of a game's flow.
type State struct {
	Phase       Phase    `json:"phase"`
	RoundNumber int      `json:"roundNumber"`
	Finalists   []string `json:"finalists"`
	Eliminated  []string `json:"eliminated"`
	Champion    string   `json:"champion,omitempty"`
}

type participant struct {
	handle     string
	score      int
	eliminated bool
}

// Flow is the phase machine for one game.
type Flow struct {
	mu                sync.Mutex
	state             State
	finalistThreshold int
	participants      map[string]*participant
}

// New builds a Flow in the lobby phase. The finalist threshold must be
// at least one.
func New(handles []string, finalistThreshold int) (*Flow, error) {
	if finalistThreshold < 1 {
		return nil, fmt.Errorf("finalist threshold must be at least 1, got %d", finalistThreshold)
	}
	participants := make(map[string]*participant, len(handles))
	for _, h := range handles {
		participants[h] = &participant{handle: h}
	}
	return &Flow{
		state:             State{Phase: PhaseLobby},
		finalistThreshold: finalistThreshold,
		participants:      participants,
	}, nil
}

// StartGame moves the game out of the lobby. Calling it again is a no-op.
func (f *Flow) StartGame() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Phase == PhaseLobby {
		f.state.Phase = PhaseGeneralRound
	}
	return f.snapshotLocked()
}

// AddParticipant registers a late joiner; known handles are kept as-is.
func (f *Flow) AddParticipant(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.participants[handle]; !ok {
		f.participants[handle] = &participant{handle: handle}
	}
}

// Eliminate marks a player out of finalist contention.
func (f *Flow) Eliminate(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.participants[handle]; ok {
		p.eliminated = true
		f.refreshEliminatedLocked()
	}
}

// Restore brings an eliminated player back.
func (f *Flow) Restore(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.participants[handle]; ok {
		p.eliminated = false
		f.refreshEliminatedLocked()
	}
}

// RecordRound applies one general round's scores and auto-transitions
// to the championship once enough finalists emerge.
func (f *Flow) RecordRound(scores map[string]int) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Phase == PhaseLobby {
		f.state.Phase = PhaseGeneralRound
	}
	if f.state.Phase != PhaseGeneralRound {
		return f.snapshotLocked(), fmt.Errorf("record round in phase %s: %w", f.state.Phase, ErrWrongPhase)
	}

	f.applyScoresLocked(scores)
	f.state.RoundNumber++

	if finalists := f.selectFinalistsLocked(); len(finalists) >= f.finalistThreshold {
		f.state.Finalists = finalists
		f.state.Phase = PhaseChampionship
	}
	return f.snapshotLocked(), nil
}

// RecordChampionshipBallots applies the final votes and crowns the
// highest-scoring finalist.
func (f *Flow) RecordChampionshipBallots(ballots map[string]int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Phase != PhaseChampionship {
		return "", fmt.Errorf("championship ballots in phase %s: %w", f.state.Phase, ErrWrongPhase)
	}

	f.applyScoresLocked(ballots)

	winner := ""
	best := -1
	for _, handle := range f.state.Finalists {
		p, ok := f.participants[handle]
		if !ok {
			continue
		}
		if p.score > best || (p.score == best && handle < winner) {
			winner = handle
			best = p.score
		}
	}
	if winner == "" {
		return "", fmt.Errorf("no finalists on record: %w", ErrNotEnoughFinalists)
	}

	f.state.Champion = winner
	f.state.Phase = PhaseComplete
	return winner, nil
}

// Snapshot returns a copy of the current flow state.
func (f *Flow) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Flow) applyScoresLocked(scores map[string]int) {
	for handle, points := range scores {
		p, ok := f.participants[handle]
		if !ok {
			p = &participant{handle: handle}
			f.participants[handle] = p
		}
		p.score += points
	}
}

// selectFinalistsLocked picks the top scorers among active players,
// ties broken by handle ascending.
func (f *Flow) selectFinalistsLocked() []string {
	active := make([]*participant, 0, len(f.participants))
	for _, p := range f.participants {
		if !p.eliminated {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].score != active[j].score {
			return active[i].score > active[j].score
		}
		return active[i].handle < active[j].handle
	})
	if len(active) > f.finalistThreshold {
		active = active[:f.finalistThreshold]
	}
	finalists := make([]string, 0, len(active))
	for _, p := range active {
		finalists = append(finalists, p.handle)
	}
	return finalists
}

func (f *Flow) refreshEliminatedLocked() {
	eliminated := make([]string, 0)
	for handle, p := range f.participants {
		if p.eliminated {
			eliminated = append(eliminated, handle)
		}
	}
	sort.Strings(eliminated)
	f.state.Eliminated = eliminated
}

func (f *Flow) snapshotLocked() State {
	s := f.state
	s.Finalists = append([]string(nil), f.state.Finalists...)
	s.Eliminated = append([]string(nil), f.state.Eliminated...)
	return s
}
