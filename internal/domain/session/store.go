// Package session holds per-user conversation state: the transaction
// waiting for a type, the type menu, an in-progress edit and the user's
// recent record ids. State is bounded by an LRU over users and by an
// age-based sweep.
package session

import (
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/FACorreiaa/ledger-bot/internal/domain/finance"
	"github.com/FACorreiaa/ledger-bot/internal/domain/txtype"
)

// Defaults
const (
	DefaultMaxUsers   = 100
	DefaultMaxHistory = 10
	DefaultMaxAge     = 30 * time.Minute
)

// Pending is a parsed transaction waiting for its type
type Pending struct {
	Transaction finance.ParsedTransaction
	UserName    string
	CapturedAt  time.Time
}

// EditField is the record field an edit targets
type EditField string

const (
	EditNone        EditField = "" // waiting for the user to pick a field
	EditDescription EditField = "description"
	EditAmount      EditField = "amount"
	EditAccount     EditField = "account"
)

// Edit is an in-progress record edit
type Edit struct {
	RecordID  string
	Field     EditField
	UpdatedAt time.Time
}

// State is everything kept for one user
type State struct {
	Pending     *Pending
	TypeSession *txtype.Session
	Edit        *Edit
	History     []string // record ids, oldest first
	Touched     time.Time
}

func (s *State) transientEmpty() bool {
	return s.Pending == nil && s.TypeSession == nil && s.Edit == nil
}

// Config bounds the store
type Config struct {
	MaxUsers   int
	MaxHistory int
}

// Store is the conversation state store, safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	users      *lru.Cache[int64, *State]
	maxHistory int
	now        func() time.Time
}

// NewStore creates a store. now may be nil.
func NewStore(cfg Config, now func() time.Time) *Store {
	if cfg.MaxUsers <= 0 {
		cfg.MaxUsers = DefaultMaxUsers
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if now == nil {
		now = time.Now
	}

	// only fails for a non-positive size
	users, _ := lru.New[int64, *State](cfg.MaxUsers)

	return &Store{
		users:      users,
		maxHistory: cfg.MaxHistory,
		now:        now,
	}
}

// Len returns the number of tracked users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Len()
}

// Pending returns the user's parked transaction.
func (s *Store) Pending(userID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users.Get(userID)
	if !ok || st.Pending == nil {
		return Pending{}, false
	}
	return *st.Pending, true
}

// SetPending parks a transaction, replacing any earlier one.
func (s *Store) SetPending(userID int64, p Pending) {
	s.update(userID, func(st *State, now time.Time) {
		if p.CapturedAt.IsZero() {
			p.CapturedAt = now
		}
		st.Pending = &p
	})
}

// ClearPending drops the parked transaction.
func (s *Store) ClearPending(userID int64) {
	s.modify(userID, func(st *State) { st.Pending = nil })
}

// TypeSession returns the user's type menu session.
func (s *Store) TypeSession(userID int64) (txtype.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users.Get(userID)
	if !ok || st.TypeSession == nil {
		return txtype.Session{}, false
	}
	return *st.TypeSession, true
}

// SaveTypeSession stores the user's type menu session.
func (s *Store) SaveTypeSession(userID int64, sess txtype.Session) {
	s.update(userID, func(st *State, now time.Time) {
		if sess.UpdatedAt.IsZero() {
			sess.UpdatedAt = now
		}
		st.TypeSession = &sess
	})
}

// ClearTypeSession drops the user's type menu session.
func (s *Store) ClearTypeSession(userID int64) {
	s.modify(userID, func(st *State) { st.TypeSession = nil })
}

// EditSession returns the user's in-progress edit.
func (s *Store) EditSession(userID int64) (Edit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users.Get(userID)
	if !ok || st.Edit == nil {
		return Edit{}, false
	}
	return *st.Edit, true
}

// SetEdit stores the user's in-progress edit.
func (s *Store) SetEdit(userID int64, e Edit) {
	s.update(userID, func(st *State, now time.Time) {
		e.UpdatedAt = now
		st.Edit = &e
	})
}

// ClearEdit ends the user's edit.
func (s *Store) ClearEdit(userID int64) {
	s.modify(userID, func(st *State) { st.Edit = nil })
}

// History returns the user's recent record ids, oldest first.
func (s *Store) History(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users.Get(userID)
	if !ok {
		return nil
	}
	return slices.Clone(st.History)
}

// AppendHistory records a created record id, dropping the oldest ids
// beyond the history cap.
func (s *Store) AppendHistory(userID int64, recordID string) {
	s.update(userID, func(st *State, _ time.Time) {
		st.History = append(st.History, recordID)
		if over := len(st.History) - s.maxHistory; over > 0 {
			st.History = slices.Clone(st.History[over:])
		}
	})
}

// RemoveHistory forgets a record id.
func (s *Store) RemoveHistory(userID int64, recordID string) bool {
	removed := false
	s.modify(userID, func(st *State) {
		if i := slices.Index(st.History, recordID); i >= 0 {
			st.History = slices.Delete(st.History, i, i+1)
			removed = true
		}
	})
	return removed
}

// Sweep clears transient state older than maxAge, judging each piece by its
// own timestamp, and forgets users left with nothing. History is kept. It
// returns the number of pieces cleared.
func (s *Store) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	cleared := 0

	for _, userID := range s.users.Keys() {
		st, ok := s.users.Peek(userID)
		if !ok {
			continue
		}
		if st.Pending != nil && st.Pending.CapturedAt.Before(cutoff) {
			st.Pending = nil
			cleared++
		}
		if st.TypeSession != nil && st.TypeSession.UpdatedAt.Before(cutoff) {
			st.TypeSession = nil
			cleared++
		}
		if st.Edit != nil && st.Edit.UpdatedAt.Before(cutoff) {
			st.Edit = nil
			cleared++
		}
		if st.transientEmpty() && len(st.History) == 0 {
			s.users.Remove(userID)
		}
	}
	return cleared
}

// update applies fn to the user's state, creating it if needed, and marks
// the user most recently used.
func (s *Store) update(userID int64, fn func(st *State, now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st, ok := s.users.Get(userID)
	if !ok {
		st = &State{}
		s.users.Add(userID, st)
	}
	fn(st, now)
	st.Touched = now
}

// modify applies fn to an existing user's state without creating one or
// changing recency.
func (s *Store) modify(userID int64, fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users.Peek(userID); ok {
		fn(st)
	}
}

var _ txtype.Sessions = (*Store)(nil)
