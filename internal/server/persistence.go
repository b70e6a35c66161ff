package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ludo-server/internal/tournament"
)

// PersistenceManager stores tournaments and match records as JSON rows. It
// implements tournament.Store; every failure is reported to the caller, who
// treats it as degraded mode and keeps working in memory.
type PersistenceManager struct {
	db *sql.DB
}

func NewPersistenceManager(db *sql.DB) *PersistenceManager {
	return &PersistenceManager{
		db: db,
	}
}

// EnsureSchema creates the tables on startup. Idempotent.
func (pm *PersistenceManager) EnsureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tournaments (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS match_records (
			id TEXT PRIMARY KEY,
			tournament_id TEXT NOT NULL,
			round INT NOT NULL,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := pm.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// SavePool mirrors the in-memory pool into the database: every tournament
// is upserted and rows for deleted tournaments are removed, cascading to
// their match records.
func (pm *PersistenceManager) SavePool(pool map[string]*tournament.Tournament) error {
	tx, err := pm.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin pool save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for id, t := range pool {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to serialize tournament %s: %w", id, err)
		}

		_, err = tx.Exec(`
			INSERT INTO tournaments (id, status, data, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET status = $2, data = $3, updated_at = $4
		`, id, string(t.Status), data, now)
		if err != nil {
			return fmt.Errorf("failed to save tournament %s: %w", id, err)
		}
	}

	// Remove rows for tournaments that were hard-deleted from the pool.
	rows, err := tx.Query(`SELECT id FROM tournaments`)
	if err != nil {
		return fmt.Errorf("failed to list stored tournaments: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan tournament id: %w", err)
		}
		if _, live := pool[id]; !live {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tournament ids: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.Exec(`DELETE FROM match_records WHERE tournament_id = $1`, id); err != nil {
			return fmt.Errorf("failed to cascade delete matches of %s: %w", id, err)
		}
		if _, err := tx.Exec(`DELETE FROM tournaments WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete tournament %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// LoadPool restores all tournaments, used on startup.
func (pm *PersistenceManager) LoadPool() (map[string]*tournament.Tournament, error) {
	rows, err := pm.db.Query(`SELECT data FROM tournaments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	pool := make(map[string]*tournament.Tournament)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}

		var t tournament.Tournament
		if err := json.Unmarshal(data, &t); err != nil {
			// Skip the corrupt row but keep loading the rest.
			log.Printf("Warning: failed to deserialize tournament: %v", err)
			continue
		}
		pool[t.ID] = &t
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}

	return pool, nil
}

// Read loads one tournament by id.
func (pm *PersistenceManager) Read(id string) (*tournament.Tournament, error) {
	var data []byte
	err := pm.db.QueryRow(`SELECT data FROM tournaments WHERE id = $1`, id).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, errors.New("TOURNAMENT_NOT_FOUND: Tournament not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament %s: %w", id, err)
	}

	var t tournament.Tournament
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to deserialize tournament %s: %w", id, err)
	}
	return &t, nil
}

// UpsertMatch persists one match record.
func (pm *PersistenceManager) UpsertMatch(record *tournament.MatchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize match %s: %w", record.ID, err)
	}

	_, err = pm.db.Exec(`
		INSERT INTO match_records (id, tournament_id, round, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET round = $3, data = $4, updated_at = $5
	`, record.ID, record.TournamentID, record.Round, data, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", record.ID, err)
	}

	return nil
}

// LoadMatches returns a tournament's stored match records, newest round
// first. Used by operators inspecting a bracket.
func (pm *PersistenceManager) LoadMatches(tournamentID string) ([]*tournament.MatchRecord, error) {
	rows, err := pm.db.Query(`
		SELECT data FROM match_records
		WHERE tournament_id = $1
		ORDER BY round DESC
	`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var records []*tournament.MatchRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		var record tournament.MatchRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to deserialize match: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return records, nil
}
