package propertyintake

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"wisebox-backend/internal/geocode"
	"wisebox-backend/internal/wizard"
)

const (
	DefaultIdleTTL     = 2 * time.Hour
	DefaultMaxSessions = 5000
)

// Session is one live "add property" flow. All access to the wizard and the
// pin goes through the session mutex.
type Session struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	mu      sync.Mutex
	wiz     *wizard.Wizard
	pin     geocode.Pin
	draftID string
	touched time.Time
}

func newSession(id, ownerID string, wiz *wizard.Wizard, now time.Time) *Session {
	return &Session{
		ID:        id,
		OwnerID:   ownerID,
		CreatedAt: now,
		wiz:       wiz,
		touched:   now,
	}
}

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// SessionStore keeps live sessions in memory. Sessions idle for longer than
// idleTTL are dropped by Sweep; when maxSessions is exceeded the least
// recently used sessions go first.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time
	log         *slog.Logger

	// onEvict runs outside the store lock for every session removed by
	// Sweep or by the size cap.
	onEvict func(*Session)
}

func NewSessionStore(idleTTL time.Duration, maxSessions int, log *slog.Logger) *SessionStore {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if maxSessions < 0 {
		maxSessions = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionStore{
		sessions:    make(map[string]*Session),
		idleTTL:     idleTTL,
		maxSessions: maxSessions,
		now:         time.Now,
		log:         log,
	}
}

func (s *SessionStore) Add(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	evicted := s.cleanupIfNeeded()
	s.mu.Unlock()

	s.evict(evicted)
}

// Get returns a live session. A session past its idle deadline is treated as
// gone even if the janitor has not removed it yet.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.lastTouched()) > s.idleTTL {
		return nil, false
	}
	return sess, true
}

func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ObjectKeys collects the blob keys held by open sessions other than except.
// The caller must not hold any session lock.
func (s *SessionStore) ObjectKeys(except *Session) map[string]struct{} {
	s.mu.RLock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess != except {
			live = append(live, sess)
		}
	}
	s.mu.RUnlock()

	keys := make(map[string]struct{})
	for _, sess := range live {
		sess.mu.Lock()
		if !sess.wiz.Closed() {
			for _, k := range sess.wiz.State().ObjectKeys() {
				keys[k] = struct{}{}
			}
		}
		sess.mu.Unlock()
	}
	return keys
}

// Sweep removes idle sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.lastTouched()) > s.idleTTL {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	if len(expired) > 0 {
		s.log.Info("wizard sessions: expired idle sessions", slog.Int("count", len(expired)))
	}
	s.evict(expired)
	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (s *SessionStore) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// cleanupIfNeeded must be called with s.mu held.
func (s *SessionStore) cleanupIfNeeded() []*Session {
	if s.maxSessions <= 0 || len(s.sessions) <= s.maxSessions {
		return nil
	}

	type entry struct {
		id      string
		touched time.Time
	}
	entries := make([]entry, 0, len(s.sessions))
	for id, sess := range s.sessions {
		entries = append(entries, entry{id: id, touched: sess.lastTouched()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].touched.Before(entries[j].touched)
	})

	toDelete := len(s.sessions) - s.maxSessions
	evicted := make([]*Session, 0, toDelete)
	for i := 0; i < toDelete; i++ {
		evicted = append(evicted, s.sessions[entries[i].id])
		delete(s.sessions, entries[i].id)
		s.log.Info("wizard sessions: evicted least recently used",
			slog.String("session_id", entries[i].id),
			slog.Time("touched", entries[i].touched),
		)
	}
	return evicted
}

func (s *SessionStore) evict(sessions []*Session) {
	if s.onEvict == nil {
		return
	}
	for _, sess := range sessions {
		s.onEvict(sess)
	}
}
