package tournament

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxGroupSize = 4

type admission struct {
	tournamentID string
	expiresAt    time.Time
	used         bool
}

// Orchestrator owns the tournament pool. All mutating operations are
// serialized by its lock; round completion is decided by re-scanning the
// round's match records, so reports may arrive in any order.
type Orchestrator struct {
	pool       map[string]*Tournament
	admissions map[string]*admission
	store      Store
	binder     RoomBinder
	newCode    func() string
	shuffle    func(n int, swap func(i, j int))
	mu         sync.RWMutex
}

type Option func(*Orchestrator)

// WithRoomCodes overrides room code generation, typically with the
// registry's collision-checked generator.
func WithRoomCodes(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newCode = fn
	}
}

// WithShuffle overrides the permutation source. Tests use this to make
// round generation deterministic.
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(o *Orchestrator) {
		o.shuffle = fn
	}
}

// NewOrchestrator restores the pool from the store when one is available.
// A nil or failing store leaves the orchestrator on an empty in-memory pool.
func NewOrchestrator(store Store, binder RoomBinder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pool:       make(map[string]*Tournament),
		admissions: make(map[string]*admission),
		store:      store,
		binder:     binder,
		newCode:    defaultRoomCode,
		shuffle:    rand.Shuffle,
	}
	for _, opt := range opts {
		opt(o)
	}

	if store != nil {
		pool, err := store.LoadPool()
		if err != nil {
			log.Printf("Tournament store unavailable, starting with empty pool: %v", err)
		} else if pool != nil {
			o.pool = pool
		}
	}

	return o
}

func defaultRoomCode() string {
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	code := make([]byte, 4)
	for i := range code {
		code[i] = letters[rand.Intn(len(letters))]
	}
	return string(code)
}

func (o *Orchestrator) Create(name string, target int, startsAt time.Time, gated bool) (*Tournament, error) {
	if name == "" {
		return nil, errors.New("INVALID_NAME: Tournament name cannot be empty")
	}

	t := &Tournament{
		ID:                 uuid.New().String(),
		Name:               name,
		TotalPlayersTarget: target,
		Status:             StatusWaiting,
		StartsAt:           startsAt,
		Players:            make([]PlayerEntry, 0),
		Matches:            make([]*MatchRecord, 0),
		Gated:              gated,
	}

	o.mu.Lock()
	o.pool[t.ID] = t
	o.mu.Unlock()

	o.savePool()
	return t, nil
}

func (o *Orchestrator) Get(id string) (*Tournament, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.getLocked(id)
}

func (o *Orchestrator) getLocked(id string) (*Tournament, error) {
	t, exists := o.pool[id]
	if !exists {
		return nil, errors.New("TOURNAMENT_NOT_FOUND: Tournament not found")
	}
	return t, nil
}

func (o *Orchestrator) List() []*Tournament {
	o.mu.RLock()
	defer o.mu.RUnlock()

	list := make([]*Tournament, 0, len(o.pool))
	for _, t := range o.pool {
		list = append(list, t)
	}
	return list
}

// IssueAdmission mints a one-time entry token for a gated tournament. The
// token expires after ttl and is consumed on first valid use.
func (o *Orchestrator) IssueAdmission(tournamentID string, ttl time.Duration) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.getLocked(tournamentID); err != nil {
		return "", err
	}

	token := uuid.New().String()
	o.admissions[token] = &admission{
		tournamentID: tournamentID,
		expiresAt:    time.Now().Add(ttl),
	}
	return token, nil
}

func (o *Orchestrator) consumeAdmissionLocked(tournamentID, token string) error {
	adm, exists := o.admissions[token]
	if !exists || adm.tournamentID != tournamentID {
		return errors.New("ADMISSION_INVALID: Admission token not recognized")
	}
	if adm.used {
		return errors.New("ADMISSION_USED: Admission token already used")
	}
	if time.Now().After(adm.expiresAt) {
		return errors.New("ADMISSION_EXPIRED: Admission token has expired")
	}
	adm.used = true
	return nil
}

// Register appends a player to the pool while the tournament is waiting.
// Duplicate names are allowed by policy. Gated tournaments additionally
// require an unexpired, unused admission token.
func (o *Orchestrator) Register(tournamentID, name, phone, admissionToken string) (PlayerEntry, error) {
	if name == "" {
		return PlayerEntry{}, errors.New("INVALID_NAME: Player name cannot be empty")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	t, err := o.getLocked(tournamentID)
	if err != nil {
		return PlayerEntry{}, err
	}
	if t.Status != StatusWaiting {
		return PlayerEntry{}, errors.New("REGISTRATION_CLOSED: Tournament is no longer accepting players")
	}
	if t.Gated {
		if err := o.consumeAdmissionLocked(tournamentID, admissionToken); err != nil {
			return PlayerEntry{}, err
		}
	}

	entry := PlayerEntry{
		ID:    uuid.New().String(),
		Name:  name,
		Phone: phone,
	}
	t.Players = append(t.Players, entry)

	o.savePoolLocked()
	return entry, nil
}

// StartRound shuffles the pool and partitions it into groups of up to four,
// one MatchRecord per group, then hands each record to the room binder.
func (o *Orchestrator) StartRound(tournamentID string) ([]*MatchRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, err := o.getLocked(tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusWaiting {
		return nil, errors.New("ALREADY_STARTED: Tournament is not in the waiting state")
	}
	if len(t.Players) == 0 {
		return nil, errors.New("NO_PLAYERS: Cannot start a tournament with an empty pool")
	}

	t.Status = StatusInProgress
	records := o.scheduleRoundLocked(t, t.Players, 1)

	// A sole entrant yields one already-finished solo match, so the round
	// can be complete before any result is ever reported.
	o.resolveRoundLocked(t, 1)

	o.savePoolLocked()
	return records, nil
}

// scheduleRoundLocked creates the round's records from an already-decided
// entrant list. A group of one cannot play; it is recorded as finished with
// the lone player placed first so they advance without a game.
func (o *Orchestrator) scheduleRoundLocked(t *Tournament, entrants []PlayerEntry, round int) []*MatchRecord {
	shuffled := make([]PlayerEntry, len(entrants))
	copy(shuffled, entrants)
	o.shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	t.CurrentRound = round

	var records []*MatchRecord
	for i := 0; i < len(shuffled); i += maxGroupSize {
		end := i + maxGroupSize
		if end > len(shuffled) {
			end = len(shuffled)
		}
		group := shuffled[i:end]

		record := &MatchRecord{
			ID:           uuid.New().String(),
			TournamentID: t.ID,
			Round:        round,
			Index:        len(records),
			RoomCode:     o.newCode(),
			Players:      group,
			Status:       MatchScheduled,
		}

		if len(group) == 1 {
			record.Status = MatchFinished
			record.Placements = []string{group[0].ID}
			log.Printf("Tournament %s round %d: lone player %s auto-advances", t.ID, round, group[0].Name)
		}

		t.Matches = append(t.Matches, record)
		records = append(records, record)

		o.upsertMatch(record)
		if record.Status == MatchScheduled && o.binder != nil {
			if err := o.binder.BindMatch(record); err != nil {
				log.Printf("Failed to bind match %s to room %s: %v", record.ID, record.RoomCode, err)
			}
		}
	}

	return records
}

// RoundResult reports what a result submission changed.
type RoundResult struct {
	AlreadyRecorded    bool
	RoundComplete      bool
	Winners            []PlayerEntry
	NextRound          []*MatchRecord
	TournamentFinished bool
}

// ReportResult records a match's placements. The first report per match
// wins; repeats are acknowledged and ignored. When the last match of the
// round lands, winners either crown the tournament (four or fewer) or seed
// the next round.
func (o *Orchestrator) ReportResult(tournamentID, matchID string, placements []string) (*RoundResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, err := o.getLocked(tournamentID)
	if err != nil {
		return nil, err
	}

	var match *MatchRecord
	for _, m := range t.Matches {
		if m.ID == matchID {
			match = m
			break
		}
	}
	if match == nil {
		return nil, errors.New("MATCH_NOT_FOUND: Match not found in tournament")
	}

	if match.Status == MatchFinished {
		return &RoundResult{AlreadyRecorded: true}, nil
	}

	match.Placements = placements
	match.Status = MatchFinished
	o.upsertMatch(match)

	result := o.resolveRoundLocked(t, match.Round)
	o.savePoolLocked()

	if result == nil {
		return &RoundResult{}, nil
	}
	return result, nil
}

// resolveRoundLocked finishes the tournament or seeds the next round once
// every match in the round is finished, and returns nil while any match is
// still pending. Completeness is decided by re-scanning the round, never by
// a counter.
func (o *Orchestrator) resolveRoundLocked(t *Tournament, round int) *RoundResult {
	matches := t.matchesInRound(round)
	for _, m := range matches {
		if m.Status != MatchFinished {
			return nil
		}
	}

	winners := make([]PlayerEntry, 0, len(matches))
	for _, m := range matches {
		id, ok := m.winnerID()
		if !ok {
			log.Printf("Match %s finished without a first place, no winner advances", m.ID)
			continue
		}
		entry, found := t.playerByEntryID(id)
		if !found {
			log.Printf("Match %s names unknown winner %s, no winner advances", m.ID, id)
			continue
		}
		winners = append(winners, entry)
	}

	result := &RoundResult{RoundComplete: true, Winners: winners}

	if len(winners) <= maxGroupSize {
		t.Status = StatusFinished
		t.Winners = winners
		result.TournamentFinished = true
	} else {
		result.NextRound = o.scheduleRoundLocked(t, winners, round+1)
	}

	return result
}

// MarkMatchPlaying flips a scheduled match to playing, called when its
// room's start gate fires.
func (o *Orchestrator) MarkMatchPlaying(tournamentID, matchID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, err := o.getLocked(tournamentID)
	if err != nil {
		return err
	}
	for _, m := range t.Matches {
		if m.ID != matchID {
			continue
		}
		if m.Status != MatchScheduled {
			return nil
		}
		m.Status = MatchPlaying
		o.upsertMatch(m)
		o.savePoolLocked()
		return nil
	}
	return errors.New("MATCH_NOT_FOUND: Match not found in tournament")
}

// Trash archives a tournament. Finished tournaments stay finished.
func (o *Orchestrator) Trash(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, err := o.getLocked(id)
	if err != nil {
		return err
	}
	if t.Status == StatusFinished {
		return errors.New("ALREADY_FINISHED: Cannot trash a finished tournament")
	}
	t.Status = StatusTrashed

	o.savePoolLocked()
	return nil
}

// Restore moves a trashed tournament back to waiting.
func (o *Orchestrator) Restore(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, err := o.getLocked(id)
	if err != nil {
		return err
	}
	if t.Status != StatusTrashed {
		return fmt.Errorf("NOT_TRASHED: Tournament is %s, only trashed tournaments can be restored", t.Status)
	}
	t.Status = StatusWaiting

	o.savePoolLocked()
	return nil
}

// Delete permanently removes a tournament with its players and matches.
func (o *Orchestrator) Delete(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.getLocked(id); err != nil {
		return err
	}
	delete(o.pool, id)

	o.savePoolLocked()
	return nil
}

// Snapshot deep-copies the pool for persistence outside the orchestrator's
// lock. Handing out the live pointers would let the save path serialize a
// tournament while a concurrent Register or ReportResult mutates it.
func (o *Orchestrator) Snapshot() map[string]*Tournament {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snapshot := make(map[string]*Tournament, len(o.pool))
	for id, t := range o.pool {
		snapshot[id] = t.clone()
	}
	return snapshot
}

func (o *Orchestrator) savePool() {
	o.mu.RLock()
	defer o.mu.RUnlock()
	o.savePoolLocked()
}

// savePoolLocked pushes the in-memory pool to the store. Failures are
// degraded mode, never surfaced to the triggering action.
func (o *Orchestrator) savePoolLocked() {
	if o.store == nil {
		return
	}
	if err := o.store.SavePool(o.pool); err != nil {
		log.Printf("Failed to persist tournament pool: %v", err)
	}
}

func (o *Orchestrator) upsertMatch(record *MatchRecord) {
	if o.store == nil {
		return
	}
	if err := o.store.UpsertMatch(record); err != nil {
		log.Printf("Failed to persist match %s: %v", record.ID, err)
	}
}
