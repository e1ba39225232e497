package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "tutorbook/internal/bookings/errors"
	"tutorbook/pkg/config"
	mongotx "tutorbook/pkg/db/mongo"
	"tutorbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// DueField names the timestamp FindDue compares against.
type DueField string

const (
	DueByStart DueField = "scheduled_start"
	DueByEnd   DueField = "scheduled_end"
)

// Filter narrows FindByTutor/FindByStudent and their counts. A zero From or To
// leaves that side of the range open.
type Filter struct {
	From     time.Time
	To       time.Time
	Statuses []model.BookingStatus
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindActiveByTutor(ctx context.Context, tutorID string, from, to time.Time) ([]*model.Booking, error)
	FindByTutor(ctx context.Context, tutorID string, filter Filter, limit int, offset int64) ([]*model.Booking, error)
	FindByStudent(ctx context.Context, studentID string, filter Filter, limit int, offset int64) ([]*model.Booking, error)
	CountByTutor(ctx context.Context, tutorID string, filter Filter) (int64, error)
	CountByStudent(ctx context.Context, studentID string, filter Filter) (int64, error)
	// UpdateStatus sets status only if the stored version equals
	// expectedVersion, then increments the version. It returns the updated
	// booking.
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.BookingStatus, now time.Time) (*model.Booking, error)
	FindDue(ctx context.Context, status model.BookingStatus, field DueField, before time.Time, limit int) ([]*model.Booking, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	booking.UpdatedAt = booking.CreatedAt
	booking.Version = 1

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindActiveByTutor(ctx context.Context, tutorID string, from, to time.Time) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"tutor_id":        tutorID,
		"status":          bson.M{"$in": model.ActiveStatuses},
		"scheduled_start": bson.M{"$lt": to},
		"scheduled_end":   bson.M{"$gt": from},
	}

	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "scheduled_start", Value: 1}}))
}

func (r *mongoBookingRepository) FindByTutor(ctx context.Context, tutorID string, filter Filter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.find(ctx, buildSearchFilter("tutor_id", tutorID, filter), pageOptions(limit, offset))
}

func (r *mongoBookingRepository) FindByStudent(ctx context.Context, studentID string, filter Filter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.find(ctx, buildSearchFilter("student_id", studentID, filter), pageOptions(limit, offset))
}

func (r *mongoBookingRepository) CountByTutor(ctx context.Context, tutorID string, filter Filter) (int64, error) {
	return r.count(ctx, buildSearchFilter("tutor_id", tutorID, filter))
}

func (r *mongoBookingRepository) CountByStudent(ctx context.Context, studentID string, filter Filter) (int64, error) {
	return r.count(ctx, buildSearchFilter("student_id", studentID, filter))
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.BookingStatus, now time.Time) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": id, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": now.UTC().Truncate(time.Millisecond),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	// Nothing matched: either the booking is gone or its version moved on.
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if n == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return nil, fmt.Errorf("%w: expected version %d", bookingserrors.ErrStaleVersion, expectedVersion)
}

func (r *mongoBookingRepository) FindDue(ctx context.Context, status model.BookingStatus, field DueField, before time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":      status,
		string(field): bson.M{"$lte": before},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: string(field), Value: 1}}).
		SetLimit(int64(limit))

	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func pageOptions(limit int, offset int64) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "scheduled_start", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
}

func buildSearchFilter(ownerField, ownerID string, f Filter) bson.M {
	filter := bson.M{ownerField: ownerID}
	if !f.To.IsZero() {
		filter["scheduled_start"] = bson.M{"$lt": f.To}
	}
	if !f.From.IsZero() {
		filter["scheduled_end"] = bson.M{"$gt": f.From}
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	return filter
}
