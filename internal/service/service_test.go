package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/folio/internal/cache"
	"github.com/utafrali/folio/internal/dispatch"
	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/policy"
	"github.com/utafrali/folio/internal/repository/memory"
)

// --- Mocks ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishReviewCreated(ctx context.Context, book *domain.Book, review *domain.Review) error {
	return m.Called(ctx, book, review).Error(0)
}

func (m *mockPublisher) PublishReviewModerated(ctx context.Context, book *domain.Book, entry *domain.ModerationLogEntry) error {
	return m.Called(ctx, book, entry).Error(0)
}

func (m *mockPublisher) PublishAppealFiled(ctx context.Context, appeal *domain.Appeal) error {
	return m.Called(ctx, appeal).Error(0)
}

func (m *mockPublisher) PublishAppealResolved(ctx context.Context, appeal *domain.Appeal) error {
	return m.Called(ctx, appeal).Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Enqueue(ctx context.Context, email dispatch.Email) (*domain.Delivery, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

// --- Fixture ---

var (
	author      = domain.User{ID: "author-1", Name: "Ursula", Email: "ursula@example.com", Role: domain.RoleAuthor}
	otherAuthor = domain.User{ID: "author-2", Name: "Iain", Email: "iain@example.com", Role: domain.RoleAuthor}
	reader      = domain.User{ID: "reader-1", Name: "Rosa", Email: "rosa@example.com", Role: domain.RoleCustomer}
	secondRead  = domain.User{ID: "reader-2", Name: "Tom", Role: domain.RoleCustomer}
	admin       = domain.User{ID: "admin-1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin}
)

var posted = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func actorOf(u domain.User) policy.Actor {
	return policy.Actor{UserID: u.ID, Role: u.Role}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store     *memory.Store
	publisher *mockPublisher
	mailer    *mockMailer
	book      *domain.Book
	review    domain.Review
}

// newFixture seeds a book by author-1 with one 4-star review by reader-1
// posted at the reference time.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.SeedUsers(author, otherAuthor, reader, secondRead, admin)

	ctx := context.Background()
	book := &domain.Book{
		ID:        "book-1",
		Title:     "The Dispossessed",
		AuthorID:  author.ID,
		Price:     1299,
		Tags:      []string{},
		CreatedAt: posted.Add(-time.Hour),
		UpdatedAt: posted.Add(-time.Hour),
	}
	require.NoError(t, store.Books().Create(ctx, book))

	review := domain.Review{
		ID: "rev-1", BookID: book.ID, UserID: reader.ID,
		Rating: 4, Comment: "Thoughtful and slow", Date: posted, UpdatedAt: posted,
	}
	book.AddReview(review)
	require.NoError(t, store.Books().InsertReview(ctx, book, &review))

	return &fixture{
		store:     store,
		publisher: new(mockPublisher),
		mailer:    new(mockMailer),
		book:      book,
		review:    review,
	}
}

func (f *fixture) addReview(t *testing.T, id string, u domain.User, rating int) {
	t.Helper()
	ctx := context.Background()
	book, err := f.store.Books().GetByID(ctx, f.book.ID)
	require.NoError(t, err)
	r := domain.Review{ID: id, BookID: book.ID, UserID: u.ID, Rating: rating, Date: posted, UpdatedAt: posted}
	book.AddReview(r)
	require.NoError(t, f.store.Books().InsertReview(ctx, book, &r))
}

func (f *fixture) storedBook(t *testing.T) *domain.Book {
	t.Helper()
	b, err := f.store.Books().GetByID(context.Background(), f.book.ID)
	require.NoError(t, err)
	return b
}

func (f *fixture) logEntries(t *testing.T) []domain.ModerationLogEntry {
	t.Helper()
	entries, err := f.store.ModerationLogs().ListByBook(context.Background(), f.book.ID)
	require.NoError(t, err)
	return entries
}

func (f *fixture) notificationsFor(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	items, _, err := f.store.Notifications().ListByRecipient(context.Background(), userID, 1, 100)
	require.NoError(t, err)
	return items
}

func (f *fixture) moderationService(now time.Time) *ModerationService {
	svc := NewModerationService(f.store, cache.Noop{}, f.publisher, f.mailer, domain.DefaultEditWindow, newTestLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func (f *fixture) expectModerated() {
	f.publisher.On("PublishReviewModerated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	f.mailer.On("Enqueue", mock.Anything, mock.Anything).Return(&domain.Delivery{ID: "del-1"}, nil).Once()
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
