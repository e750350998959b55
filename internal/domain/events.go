package domain

// Wire event names. Clients switch on the "event" field.
const (
	EventRoundStarted  = "question:start"
	EventCountdownTick = "question:countdown"
	EventRoundResults  = "round:results"
	EventLeaderboard   = "leaderboard:update"
)

// RoundStartedEvent opens a round for a room.
type RoundStartedEvent struct {
	Event      string   `json:"event"`
	RoundID    string   `json:"roundId"`
	QuestionID string   `json:"questionId"`
	Duration   int      `json:"duration"`
	Players    []string `json:"players"`
}

// CountdownTickEvent announces the seconds remaining in a round.
type CountdownTickEvent struct {
	Event     string `json:"event"`
	RoundID   string `json:"roundId"`
	Remaining int    `json:"remaining"`
}

// RoundResultsEvent closes a round with every recorded answer,
// sorted by player id.
type RoundResultsEvent struct {
	Event      string        `json:"event"`
	RoundID    string        `json:"roundId"`
	QuestionID string        `json:"questionId"`
	Results    []RoundResult `json:"results"`
}

// LeaderboardEvent pushes recomputed standings after a round is scored.
type LeaderboardEvent struct {
	Event  string           `json:"event"`
	GameID string           `json:"gameId"`
	Rows   []LeaderboardRow `json:"rows"`
}

func NewRoundStarted(roundID, questionID string, duration int, players []string) RoundStartedEvent {
	return RoundStartedEvent{
		Event:      EventRoundStarted,
		RoundID:    roundID,
		QuestionID: questionID,
		Duration:   duration,
		Players:    players,
	}
}

func NewCountdownTick(roundID string, remaining int) CountdownTickEvent {
	return CountdownTickEvent{Event: EventCountdownTick, RoundID: roundID, Remaining: remaining}
}

func NewRoundResults(roundID, questionID string, results []RoundResult) RoundResultsEvent {
	return RoundResultsEvent{
		Event:      EventRoundResults,
		RoundID:    roundID,
		QuestionID: questionID,
		Results:    results,
	}
}

func NewLeaderboard(gameID string, rows []LeaderboardRow) LeaderboardEvent {
	return LeaderboardEvent{Event: EventLeaderboard, GameID: gameID, Rows: rows}
}
