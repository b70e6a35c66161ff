package tournament

import (
	"time"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusTrashed    Status = "trashed"
)

type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchPlaying   MatchStatus = "playing"
	MatchFinished  MatchStatus = "finished"
)

// PlayerEntry is one registration in a tournament pool. Duplicate
// registrations by the same person are allowed; identity uniqueness is the
// caller's concern.
type PlayerEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// MatchRecord is bracket bookkeeping for one scheduled game, distinct from
// the live room it binds to via RoomCode. Immutable once finished.
type MatchRecord struct {
	ID           string        `json:"id"`
	TournamentID string        `json:"tournamentId"`
	Round        int           `json:"round"`
	Index        int           `json:"index"`
	RoomCode     string        `json:"roomCode"`
	Players      []PlayerEntry `json:"players"`
	Status       MatchStatus   `json:"status"`
	// Placements holds player entry IDs in finishing order, 1st place first.
	Placements []string `json:"placements,omitempty"`
}

type Tournament struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	TotalPlayersTarget int            `json:"totalPlayersTarget"`
	Status             Status         `json:"status"`
	StartsAt           time.Time      `json:"startsAt"`
	Players            []PlayerEntry  `json:"players"`
	Matches            []*MatchRecord `json:"matches"`
	// Gated tournaments require a one-time admission token to register.
	Gated bool `json:"gated"`
	// CurrentRound is 0 until the first round is generated.
	CurrentRound int `json:"currentRound"`
	// Winners is filled when the tournament finishes.
	Winners []PlayerEntry `json:"winners,omitempty"`
}

// Store is the persistence adapter. Every call may fail; the orchestrator
// always keeps operating from its in-memory pool and treats store errors as
// degraded mode, never as a failure of the triggering action.
type Store interface {
	LoadPool() (map[string]*Tournament, error)
	SavePool(pool map[string]*Tournament) error
	Read(id string) (*Tournament, error)
	UpsertMatch(record *MatchRecord) error
}

// RoomBinder lets the orchestrator turn a MatchRecord into a live room:
// create the room under the record's code, seed the listed players, and arm
// the connectivity gate with the group size.
type RoomBinder interface {
	BindMatch(record *MatchRecord) error
}

func (m *MatchRecord) winnerID() (string, bool) {
	if len(m.Placements) == 0 || m.Placements[0] == "" {
		return "", false
	}
	return m.Placements[0], true
}

func (t *Tournament) playerByEntryID(id string) (PlayerEntry, bool) {
	for _, p := range t.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerEntry{}, false
}

func (t *Tournament) matchesInRound(round int) []*MatchRecord {
	var records []*MatchRecord
	for _, m := range t.Matches {
		if m.Round == round {
			records = append(records, m)
		}
	}
	return records
}

// clone copies a tournament with none of its slices or match records
// shared, so the copy can be read without holding the pool lock.
func (t *Tournament) clone() *Tournament {
	c := *t
	c.Players = append([]PlayerEntry(nil), t.Players...)
	c.Winners = append([]PlayerEntry(nil), t.Winners...)
	c.Matches = make([]*MatchRecord, len(t.Matches))
	for i, m := range t.Matches {
		mc := *m
		mc.Players = append([]PlayerEntry(nil), m.Players...)
		mc.Placements = append([]string(nil), m.Placements...)
		c.Matches[i] = &mc
	}
	return &c
}
