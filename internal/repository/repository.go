package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"points_bot/internal/model"
	"points_bot/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrReadOnly      = errors.New("read-only transaction")
	ErrCorrupt       = errors.New("corrupt ledger data")
)

// Backend persists the whole ledger. Save receives every record ordered by
// first-seen sequence and must keep a copy of the previous state.
type Backend interface {
	Load(ctx context.Context) ([]*model.User, error)
	Save(ctx context.Context, users []*model.User) error
}

// Restorer is implemented by backends that can roll the persisted ledger
// back to the copy taken before the last save.
type Restorer interface {
	RestoreBackup(ctx context.Context) error
}

type Health struct {
	PersistFailures int64
	LastError       string
	LastFailureAt   *time.Time
	// Divergent is true while the latest save failed: memory is ahead of disk.
	Divergent bool
}

// Store owns all user records. Every mutation runs inside Update, which holds
// a single lock across read, mutate and persist.
type Store struct {
	backend Backend

	mu      sync.Mutex
	users   map[int64]*model.User
	nextSeq int64
	health  Health
}

// NewStore loads the ledger from backend. A failed load is logged and the
// store starts empty; it never fails.
func NewStore(ctx context.Context, backend Backend) *Store {
	s := &Store{
		backend: backend,
		users:   make(map[int64]*model.User),
	}

	users, err := backend.Load(ctx)
	if err != nil {
		logger.Logger().Error("failed to load ledger, starting empty", zap.Error(err))
		return s
	}

	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Seq != users[j].Seq {
			return users[i].Seq < users[j].Seq
		}
		return users[i].TelegramID < users[j].TelegramID
	})

	for _, u := range users {
		if u.Seq > s.nextSeq {
			s.nextSeq = u.Seq
		}
	}
	for _, u := range users {
		if u.Seq == 0 {
			s.nextSeq++
			u.Seq = s.nextSeq
		}
		if u.Tasks == nil {
			u.Tasks = make(map[string]model.Phase)
		}
		s.users[u.TelegramID] = u
	}

	logger.Logger().Info("ledger loaded", zap.Int("users", len(s.users)))

	return s
}

// Update runs fn against a transaction. Writes staged by fn are applied and
// persisted only if fn returns nil. A persistence failure is logged and
// recorded in Health; it is not returned, the in-memory state stays
// authoritative.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{store: s, staged: make(map[int64]*model.User)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.staged) == 0 {
		return nil
	}

	for id, u := range tx.staged {
		s.users[id] = u
	}
	s.nextSeq += tx.created

	s.persist(ctx)

	return nil
}

// View runs fn against a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(&Tx{store: s, readOnly: true})
}

func (s *Store) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.health
}

func (s *Store) persist(ctx context.Context) {
	err := s.backend.Save(ctx, s.ordered())
	if err != nil {
		now := time.Now().UTC()
		s.health.PersistFailures++
		s.health.LastError = err.Error()
		s.health.LastFailureAt = &now
		s.health.Divergent = true
		logger.Logger().Error("failed to persist ledger, memory and storage diverge",
			zap.Error(err),
			zap.Int64("persist_failures", s.health.PersistFailures))
		return
	}
	s.health.Divergent = false
}

func (s *Store) ordered() []*model.User {
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Tx is a view of the ledger inside Update or View. Records returned by Get
// are copies; changes become visible only through Put.
type Tx struct {
	store    *Store
	staged   map[int64]*model.User
	readOnly bool
	created  int64
}

func (tx *Tx) Get(telegramID int64) (*model.User, error) {
	if u, ok := tx.staged[telegramID]; ok {
		return u.Clone(), nil
	}
	u, ok := tx.store.users[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (tx *Tx) Exists(telegramID int64) bool {
	if _, ok := tx.staged[telegramID]; ok {
		return true
	}
	_, ok := tx.store.users[telegramID]
	return ok
}

// Create stages a new record with default values.
func (tx *Tx) Create(telegramID int64, displayName string, joinDate time.Time) (*model.User, error) {
	if tx.readOnly {
		return nil, ErrReadOnly
	}
	if tx.Exists(telegramID) {
		return nil, errors.Wrapf(ErrAlreadyExists, "user %d", telegramID)
	}

	tx.created++
	u := model.NewUser(telegramID, displayName, joinDate, tx.store.nextSeq+tx.created)
	tx.staged[telegramID] = u

	return u.Clone(), nil
}

// Put stages u as the new state of an existing record. JoinDate and Seq are
// immutable and always taken from the stored record.
func (tx *Tx) Put(u *model.User) error {
	if tx.readOnly {
		return ErrReadOnly
	}

	current, ok := tx.staged[u.TelegramID]
	if !ok {
		current, ok = tx.store.users[u.TelegramID]
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "user %d", u.TelegramID)
	}

	next := u.Clone()
	next.JoinDate = current.JoinDate
	next.Seq = current.Seq
	tx.staged[u.TelegramID] = next

	return nil
}

// Users returns copies of all records in first-seen order.
func (tx *Tx) Users() []*model.User {
	out := make([]*model.User, 0, len(tx.store.users)+len(tx.staged))
	for id, u := range tx.store.users {
		if staged, ok := tx.staged[id]; ok {
			u = staged
		}
		out = append(out, u.Clone())
	}
	for id, u := range tx.staged {
		if _, ok := tx.store.users[id]; !ok {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (tx *Tx) Len() int {
	n := len(tx.store.users)
	for id := range tx.staged {
		if _, ok := tx.store.users[id]; !ok {
			n++
		}
	}
	return n
}
