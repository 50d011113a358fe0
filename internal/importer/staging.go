package importer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a staged session is honored before the
// sweeper evicts it.
const DefaultSessionTTL = 30 * time.Minute

// stagedEntry pairs a session with its confirm-in-progress flag. The flag
// guards the window between reserving a confirm and the ledger append
// finishing, so concurrent confirms and cancels cannot interleave.
type stagedEntry struct {
	session *UploadSession
	pending bool
}

// StagingStore holds staged sessions in memory. It is the only mutable
// shared state in the pipeline; all access goes through the mutex. Sessions
// do not survive a restart, which is acceptable because nothing is committed
// until confirm.
type StagingStore struct {
	mu       sync.Mutex
	sessions map[string]*stagedEntry
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewStagingStore returns an empty store. A non-positive ttl falls back to
// DefaultSessionTTL.
func NewStagingStore(ttl time.Duration, logger *slog.Logger) *StagingStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &StagingStore{
		sessions: make(map[string]*stagedEntry),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Stage creates and stores a new session for the analyzed batch, returning
// it with a fresh id and expiry.
func (s *StagingStore) Stage(owner, fileName string, candidates []TransactionCandidate, analysis *AnalysisResult) *UploadSession {
	now := s.now()
	session := &UploadSession{
		ID:         uuid.NewString(),
		Owner:      owner,
		FileName:   fileName,
		Candidates: candidates,
		Analysis:   analysis,
		Status:     StatusStaged,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &stagedEntry{session: session}
	s.mu.Unlock()

	return session
}

// Get returns a copy of the session. ErrNotFound covers unknown ids,
// sessions owned by someone else, and staged sessions past their expiry;
// the caller cannot tell these apart.
func (s *StagingStore) Get(id, owner string) (*UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookup(id, owner)
	if err != nil {
		return nil, err
	}

	copied := *entry.session
	return &copied, nil
}

// Transition moves a staged session to a terminal state. Returns ErrConflict
// if the session is already terminal or a confirm is in flight.
func (s *StagingStore) Transition(id, owner string, to SessionStatus) (*UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookup(id, owner)
	if err != nil {
		return nil, err
	}
	if entry.session.Status != StatusStaged || entry.pending {
		return nil, ErrConflict
	}

	entry.session.Status = to
	copied := *entry.session
	return &copied, nil
}

// BeginConfirm reserves the session for a confirm. Exactly one caller wins
// the reservation; everyone else gets ErrConflict until the winner resolves
// it with CompleteConfirm or AbortConfirm. The returned copy carries the
// candidates to append.
func (s *StagingStore) BeginConfirm(id, owner string) (*UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookup(id, owner)
	if err != nil {
		return nil, err
	}
	if entry.session.Status != StatusStaged || entry.pending {
		return nil, ErrConflict
	}

	entry.pending = true
	copied := *entry.session
	return &copied, nil
}

// CompleteConfirm marks a reserved session confirmed after the ledger append
// succeeded.
func (s *StagingStore) CompleteConfirm(id, owner string) (*UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookup(id, owner)
	if err != nil {
		return nil, err
	}

	entry.pending = false
	entry.session.Status = StatusConfirmed
	copied := *entry.session
	return &copied, nil
}

// AbortConfirm releases the reservation after a failed ledger append. The
// session stays staged so the caller may retry.
func (s *StagingStore) AbortConfirm(id, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[id]; ok && entry.session.Owner == owner {
		entry.pending = false
	}
}

// Sweep marks staged sessions past their expiry as expired and drops
// sessions already terminal past their expiry. A newly expired session is
// kept until the next pass so its record stays inspectable for one sweep
// interval; terminal sessions are kept until their expiry so a late confirm
// or cancel reads as a conflict, not a miss. Sessions with a confirm in
// flight are skipped; the winner resolves them.
func (s *StagingStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for id, entry := range s.sessions {
		if entry.pending || !now.After(entry.session.ExpiresAt) {
			continue
		}
		if entry.session.Status == StatusStaged {
			entry.session.Status = StatusExpired
			evicted++
			if s.logger != nil {
				s.logger.Info("staged session expired",
					"upload_id", id,
					"owner", entry.session.Owner,
					"staged_at", entry.session.CreatedAt,
				)
			}
			continue
		}
		delete(s.sessions, id)
	}
	return evicted
}

// Len reports the number of sessions currently held, for observability.
func (s *StagingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// lookup is the shared miss logic. Expired sessions read as missing whether
// the sweeper has marked them yet or not, so eviction timing never changes
// observable behavior. Callers hold s.mu.
func (s *StagingStore) lookup(id, owner string) (*stagedEntry, error) {
	entry, ok := s.sessions[id]
	if !ok || entry.session.Owner != owner {
		return nil, ErrNotFound
	}
	if entry.session.Status == StatusExpired {
		return nil, ErrNotFound
	}
	if entry.session.Status == StatusStaged && !entry.pending && s.now().After(entry.session.ExpiresAt) {
		return nil, ErrNotFound
	}
	return entry, nil
}
