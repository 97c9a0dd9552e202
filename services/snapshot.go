package services

// Snapshot payloads pushed to clients on every state change. The secret word
// is only ever populated in the copy addressed to the current giver; every
// other copy carries nil.

type PlayerSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TeamSnapshot struct {
	Index   int              `json:"index"`
	Name    string           `json:"name"`
	Color   string           `json:"color"`
	Score   int              `json:"score"`
	Players []PlayerSnapshot `json:"players"`
}

type RoundSnapshot struct {
	Phase           string   `json:"phase"`
	Clues           []string `json:"clues"`
	ClueCount       int      `json:"clue_count"`
	TimeLeft        int      `json:"time_left"`
	ActiveTeamIndex int      `json:"active_team_index"`
	GiverID         string   `json:"giver_id"`
	Category        string   `json:"category"`
	// Word is the secret; nil unless this copy is addressed to the giver.
	Word *string `json:"word,omitempty"`
}

type RoomSnapshot struct {
	Code            string           `json:"code"`
	Phase           string           `json:"phase"`
	HostID          string           `json:"host_id"`
	Players         []PlayerSnapshot `json:"players"`
	Teams           []TeamSnapshot   `json:"teams"`
	ActiveTeamIndex int              `json:"active_team_index"`
	RoundNumber     int              `json:"round_number"`
	TotalRounds     int              `json:"total_rounds"`
	Round           *RoundSnapshot   `json:"round,omitempty"`

	// Per-recipient fields, zeroed in the public copy.
	MyID        string `json:"my_id,omitempty"`
	MyTeamIndex int    `json:"my_team_index"`
	IsHost      bool   `json:"is_host"`
}

// RoundResult is broadcast when a round resolves. Team is nil when nobody
// scored.
type RoundResult struct {
	Correct bool   `json:"correct"`
	Word    string `json:"word"`
	Team    *int   `json:"team"`
	Stolen  bool   `json:"stolen"`
}

type TeamRanking struct {
	Rank    int              `json:"rank"`
	Name    string           `json:"name"`
	Color   string           `json:"color"`
	Score   int              `json:"score"`
	Players []PlayerSnapshot `json:"players"`
}
