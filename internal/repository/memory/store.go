// Package memory is an in-process implementation of repository.Store. It is
// used for local development (STORE_DRIVER=memory) and by service and
// handler tests. Transactions are serialized and applied copy-on-write, so a
// failed transaction leaves no trace.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/repository"
)

type state struct {
	books         map[string]domain.Book
	logs          []domain.ModerationLogEntry
	notifications []domain.Notification
	appeals       map[string]domain.Appeal
	users         map[string]domain.User
	deliveries    map[string]domain.Delivery
}

func newState() *state {
	return &state{
		books:      make(map[string]domain.Book),
		appeals:    make(map[string]domain.Appeal),
		users:      make(map[string]domain.User),
		deliveries: make(map[string]domain.Delivery),
	}
}

func (s *state) clone() *state {
	c := &state{
		books:         make(map[string]domain.Book, len(s.books)),
		logs:          append([]domain.ModerationLogEntry(nil), s.logs...),
		notifications: make([]domain.Notification, len(s.notifications)),
		appeals:       make(map[string]domain.Appeal, len(s.appeals)),
		users:         make(map[string]domain.User, len(s.users)),
		deliveries:    make(map[string]domain.Delivery, len(s.deliveries)),
	}
	for id, b := range s.books {
		c.books[id] = copyBook(b)
	}
	for i, n := range s.notifications {
		c.notifications[i] = copyNotification(n)
	}
	for id, a := range s.appeals {
		c.appeals[id] = a
	}
	for id, u := range s.users {
		c.users[id] = u
	}
	for id, d := range s.deliveries {
		c.deliveries[id] = d
	}
	return c
}

func copyBook(b domain.Book) domain.Book {
	b.Tags = append([]string(nil), b.Tags...)
	b.Reviews = append([]domain.Review(nil), b.Reviews...)
	return b
}

func copyNotification(n domain.Notification) domain.Notification {
	if n.ReadAt != nil {
		at := *n.ReadAt
		n.ReadAt = &at
	}
	return n
}

type shared struct {
	// mu is held for the whole of a transaction.
	mu   sync.Mutex
	data *state

	failMu   sync.Mutex
	failures map[string]error
}

// Store implements repository.Store in memory.
type Store struct {
	sh *shared
	tx *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sh: &shared{data: newState(), failures: make(map[string]error)}}
}

// SeedUsers adds users to the directory, which is read-only through the
// repository interface.
func (s *Store) SeedUsers(users ...domain.User) {
	_ = s.update(func(st *state) error {
		for _, u := range users {
			st.users[u.ID] = u
		}
		return nil
	})
}

// FailOn makes the named operation (for example "Notifications.Create")
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.sh.failMu.Lock()
	defer s.sh.failMu.Unlock()
	if err == nil {
		delete(s.sh.failures, op)
		return
	}
	s.sh.failures[op] = err
}

func (s *Store) injected(op string) error {
	s.sh.failMu.Lock()
	defer s.sh.failMu.Unlock()
	return s.sh.failures[op]
}

// view runs fn against the committed state, or the transaction's working
// copy. fn must not modify st.
func (s *Store) view(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	return fn(s.sh.data)
}

// update runs fn as a single-statement transaction unless already inside one.
func (s *Store) update(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()

	work := s.sh.data.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.sh.data = work
	return nil
}

func (s *Store) Books() repository.BookRepository                 { return &bookRepo{s} }
func (s *Store) ModerationLogs() repository.ModerationLogRepository { return &moderationRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }
func (s *Store) Appeals() repository.AppealRepository             { return &appealRepo{s} }
func (s *Store) Users() repository.UserRepository                 { return &userRepo{s} }
func (s *Store) Deliveries() repository.DeliveryRepository        { return &deliveryRepo{s} }

// WithinTx runs fn against a private copy of the data and publishes it when
// fn returns nil. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()

	tx := &Store{sh: s.sh, tx: s.sh.data.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.sh.data = tx.tx
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// pageBounds returns the half-open index range of page within n items.
func pageBounds(n, page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start > n {
		start = n
	}
	end := start + perPage
	if end > n {
		end = n
	}
	return start, end
}

func sortAppeals(appeals []domain.Appeal) {
	sort.Slice(appeals, func(i, j int) bool {
		if appeals[i].CreatedAt.Equal(appeals[j].CreatedAt) {
			return appeals[i].ID < appeals[j].ID
		}
		return appeals[i].CreatedAt.Before(appeals[j].CreatedAt)
	})
}

var _ repository.Store = (*Store)(nil)
