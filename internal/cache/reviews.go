// Package cache keeps public review listings in Redis.
//
// Every book has a generation counter that Invalidate bumps after a write
// commits. Readers take the generation before loading from the store and
// Set only stores the list if the generation is unchanged, so a list read
// before a concurrent write can never be cached after that write's
// invalidation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/pkg/database"
)

const (
	keyPrefix = "folio:reviews:"
	genPrefix = "folio:reviews-gen:"

	// genTTL outlives any single read by far. An expired counter restarts
	// at zero, which only makes in-flight Sets miss.
	genTTL = 24 * time.Hour
)

// ErrStale is returned by Set when the book was invalidated after the
// caller read its generation. Nothing was stored.
var ErrStale = errors.New("review cache entry is stale")

// ReviewCache caches the rendered review list of a book.
type ReviewCache interface {
	// Get returns the cached list. ok is false on a miss.
	Get(ctx context.Context, bookID string) (reviews []domain.Review, ok bool, err error)

	// Generation returns the book's current cache generation. Call it before
	// reading the list from the store.
	Generation(ctx context.Context, bookID string) (int64, error)

	// Set stores reviews if the book is still at generation gen. A newer
	// generation means a write committed meanwhile and the list is dropped.
	Set(ctx context.Context, bookID string, gen int64, reviews []domain.Review) error

	// Invalidate drops the list and bumps the generation.
	Invalidate(ctx context.Context, bookID string) error
}

// RedisReviewCache implements ReviewCache on Redis.
type RedisReviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReviewCache creates a Redis-backed review cache.
func NewRedisReviewCache(client *redis.Client, ttl time.Duration) *RedisReviewCache {
	return &RedisReviewCache{client: client, ttl: ttl}
}

func key(bookID string) string    { return keyPrefix + bookID }
func genKey(bookID string) string { return genPrefix + bookID }

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, c getter, bookID string) (int64, error) {
	gen, err := c.Get(ctx, genKey(bookID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get reads the cached list.
func (c *RedisReviewCache) Get(ctx context.Context, bookID string) (reviews []domain.Review, ok bool, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "GetReviews", "GET "+keyPrefix+"*")
	defer func() { end(err) }()

	data, err := c.client.Get(ctx, key(bookID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get reviews: %w", err)
	}

	if err = json.Unmarshal(data, &reviews); err != nil {
		return nil, false, fmt.Errorf("unmarshal reviews: %w", err)
	}
	return reviews, true, nil
}

// Generation reads the book's generation. A missing counter is zero.
func (c *RedisReviewCache) Generation(ctx context.Context, bookID string) (int64, error) {
	gen, err := readGeneration(ctx, c.client, bookID)
	if err != nil {
		return 0, fmt.Errorf("redis get review generation: %w", err)
	}
	return gen, nil
}

// Set stores the list with the configured TTL. The write is a WATCH/MULTI
// transaction on the generation key, so an Invalidate that lands between the
// check and the write aborts it.
func (c *RedisReviewCache) Set(ctx context.Context, bookID string, gen int64, reviews []domain.Review) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "SetReviews", "SET "+keyPrefix+"*")
	defer func() { end(err) }()

	if reviews == nil {
		reviews = []domain.Review{}
	}
	data, err := json.Marshal(reviews)
	if err != nil {
		return fmt.Errorf("marshal reviews: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if current != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(bookID), data, c.ttl)
			return nil
		})
		return err
	}, genKey(bookID))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("redis set reviews: %w", err)
	}
}

// Invalidate drops the cached list and bumps the generation.
func (c *RedisReviewCache) Invalidate(ctx context.Context, bookID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(bookID))
		pipe.Expire(ctx, genKey(bookID), genTTL)
		pipe.Del(ctx, key(bookID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate reviews: %w", err)
	}
	return nil
}

// Noop never caches. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]domain.Review, bool, error) { return nil, false, nil }
func (Noop) Generation(context.Context, string) (int64, error)          { return 0, nil }
func (Noop) Set(context.Context, string, int64, []domain.Review) error  { return nil }
func (Noop) Invalidate(context.Context, string) error                   { return nil }

var (
	_ ReviewCache = (*RedisReviewCache)(nil)
	_ ReviewCache = Noop{}
)
