package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "tutorbook/internal/availability/errors"
	"tutorbook/pkg/config"
	mongotx "tutorbook/pkg/db/mongo"
	"tutorbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName      = "Availability_windows"
	GuardCollectionName = "Availability_guards"
)

type WindowRepository interface {
	Create(ctx context.Context, window *model.AvailabilityWindow) error
	FindByID(ctx context.Context, id string) (*model.AvailabilityWindow, error)
	FindByTutor(ctx context.Context, tutorID string) ([]*model.AvailabilityWindow, error)
	Delete(ctx context.Context, id string) error
	// LockTutor makes concurrent transactions touching the same tutor
	// conflict on write. Call it first inside ExecuteTransaction.
	LockTutor(ctx context.Context, tutorID string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoWindowRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	guards     *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoWindowRepository(cfg *config.Config) WindowRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWindowRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		guards:     db.Collection(GuardCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoWindowRepository) Create(ctx context.Context, window *model.AvailabilityWindow) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	window.ID = uuid.NewString()
	window.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, window); err != nil {
		window.ID = ""
		return fmt.Errorf("failed to create availability window: %w", err)
	}
	return nil
}

func (r *mongoWindowRepository) FindByID(ctx context.Context, id string) (*model.AvailabilityWindow, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	var window model.AvailabilityWindow
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&window)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability window: %w", err)
	}
	return &window, nil
}

func (r *mongoWindowRepository) FindByTutor(ctx context.Context, tutorID string) ([]*model.AvailabilityWindow, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"tutor_id": tutorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find availability windows: %w", err)
	}
	defer cursor.Close(ctx)

	windows := []*model.AvailabilityWindow{}
	if err = cursor.All(ctx, &windows); err != nil {
		return nil, fmt.Errorf("failed to decode availability windows: %w", err)
	}
	return windows, nil
}

func (r *mongoWindowRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := uuid.Validate(id); err != nil {
		return fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete availability window: %w", err)
	}
	if result.DeletedCount == 0 {
		return availabilityerrors.ErrNotFound
	}
	return nil
}

// LockTutor bumps the tutor's guard document. Two transactions doing so
// concurrently hit a WriteConflict and the driver retries the loser, which
// then sees the winner's windows.
func (r *mongoWindowRepository) LockTutor(ctx context.Context, tutorID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"seq": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	if _, err := r.guards.UpdateOne(ctx, bson.M{"_id": tutorID}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to lock tutor availability: %w", err)
	}
	return nil
}

func (r *mongoWindowRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
