package domain

// RecordedAnswer is a single player's answer inside an open round.
// Auto-filled entries still count toward scoring; the flag only tells
// clients to render them differently.
type RecordedAnswer struct {
	Value  string
	IsAuto bool
}

// RoundResult is one entry of the final results payload.
type RoundResult struct {
	PlayerID        string `json:"playerId"`
	Answer          string `json:"answer"`
	IsAutoSubmitted bool   `json:"isAutoSubmitted"`
}

// Response is a persisted answer row for one (round, participant) pair.
// Points stay 0 until the round is scored.
type Response struct {
	ID            string `json:"id"`
	RoundID       string `json:"roundId"`
	ParticipantID string `json:"participantId"`
	Answer        string `json:"answer"`
	IsAuto        bool   `json:"isAuto"`
	Points        int    `json:"points"`
}

// LeaderboardRow is a per-participant point total within a game,
// ordered by points descending then participant id ascending.
type LeaderboardRow struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Points        int    `json:"points"`
}

// MajorityResult summarizes one round's majority vote.
type MajorityResult struct {
	RoundID               string   `json:"roundId"`
	MajorityAnswer        string   `json:"majorityAnswer"`
	IsTie                 bool     `json:"isTie"`
	AwardedParticipantIDs []string `json:"awardedParticipantIds"`
}
