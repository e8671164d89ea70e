package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/folio/internal/domain"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

// BookRepository implements repository.BookRepository on the books
// collection. Every review mutation is a single update on the book document
// that also sets the recomputed aggregates.
type BookRepository struct {
	collection *mongo.Collection
}

// NewBookRepository creates a new MongoDB-backed book repository.
func NewBookRepository(db *mongo.Database) *BookRepository {
	return &BookRepository{collection: db.Collection(booksCollection)}
}

// Create inserts a new book document.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (err error) {
	ctx, end := traced(ctx, "InsertBook", booksCollection)
	defer func() { end(err) }()

	if _, err = r.collection.InsertOne(ctx, newBookDoc(book)); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetByID loads the book document.
func (r *BookRepository) GetByID(ctx context.Context, id string) (book *domain.Book, err error) {
	ctx, end := traced(ctx, "GetBook", booksCollection)
	defer func() { end(err) }()

	var doc bookDoc
	if err = r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	return doc.toDomain(), nil
}

// GetForUpdate loads the book and bumps its lock_version. Inside a
// transaction the write makes any concurrent transaction on the same book
// fail with a write conflict, which WithTransaction retries.
func (r *BookRepository) GetForUpdate(ctx context.Context, id string) (book *domain.Book, err error) {
	ctx, end := traced(ctx, "GetBookForUpdate", booksCollection)
	defer func() { end(err) }()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bookDoc
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"lock_version": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}
	return doc.toDomain(), nil
}

// InsertReview pushes the review unless the user already has one on the book.
func (r *BookRepository) InsertReview(ctx context.Context, book *domain.Book, review *domain.Review) (err error) {
	ctx, end := traced(ctx, "InsertReview", booksCollection)
	defer func() { end(err) }()

	filter := bson.M{
		"_id":             book.ID,
		"reviews.user_id": bson.M{"$ne": review.UserID},
	}
	update := bson.M{
		"$push": bson.M{"reviews": newReviewDoc(review)},
		"$set":  aggregates(book, review.UpdatedAt),
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("push review: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.DuplicateReview(book.ID)
	}
	book.UpdatedAt = review.UpdatedAt
	return nil
}

// UpdateReview sets the review's fields through the positional operator.
func (r *BookRepository) UpdateReview(ctx context.Context, book *domain.Book, review *domain.Review) (err error) {
	ctx, end := traced(ctx, "UpdateReview", booksCollection)
	defer func() { end(err) }()

	set := aggregates(book, review.UpdatedAt)
	set["reviews.$.rating"] = review.Rating
	set["reviews.$.comment"] = review.Comment
	set["reviews.$.updated_at"] = review.UpdatedAt

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": book.ID, "reviews._id": review.ID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("review", review.ID)
	}
	book.UpdatedAt = review.UpdatedAt
	return nil
}

// DeleteReview pulls the review out of the book.
func (r *BookRepository) DeleteReview(ctx context.Context, book *domain.Book, reviewID string) (err error) {
	ctx, end := traced(ctx, "DeleteReview", booksCollection)
	defer func() { end(err) }()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": book.ID, "reviews._id": reviewID},
		bson.M{
			"$pull": bson.M{"reviews": bson.M{"_id": reviewID}},
			"$set":  aggregates(book, book.UpdatedAt),
		},
	)
	if err != nil {
		return fmt.Errorf("pull review: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("review", reviewID)
	}
	return nil
}

func aggregates(book *domain.Book, at any) bson.M {
	return bson.M{
		"rating":        book.Rating,
		"total_reviews": book.TotalReviews,
		"updated_at":    at,
	}
}
