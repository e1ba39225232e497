package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	availabilityrepo "tutorbook/internal/availability/repository"
	bookingrepo "tutorbook/internal/bookings/repository"
	"tutorbook/internal/migrations/mongo/validators"
	"tutorbook/internal/reservation"
	"tutorbook/pkg/logger"
)

var (
	AvailabilityWindowsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tutor_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		// Conflict detection and tutor listings.
		{Keys: bson.D{
			{Key: "tutor_id", Value: 1},
			{Key: "scheduled_start", Value: 1},
			{Key: "scheduled_end", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "student_id", Value: 1},
			{Key: "scheduled_start", Value: 1},
		}},
		// AdvanceDue scans.
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_start", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_end", Value: 1}}},
	}

	ReservationLocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "claims.expires_at", Value: 1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	collections := map[string]collectionDef{
		availabilityrepo.CollectionName: {
			Indexes:   AvailabilityWindowsIndexes,
			Validator: validators.AvailabilityWindowValidator,
		},
		availabilityrepo.GuardCollectionName: {
			Validator: validators.AvailabilityGuardValidator,
		},
		bookingrepo.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		reservation.CollectionName: {
			Indexes:   ReservationLocksIndexes,
			Validator: validators.ReservationLockValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
