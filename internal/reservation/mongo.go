package reservation

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Reservation_locks"

// claimAttempts covers the race where two first claims on a tutor both try
// to create the arena document. The loser retries against the stored doc.
const claimAttempts = 2

// MongoLock stores one document per tutor holding all of its live claims.
// Every claim is a single conditional update on that document, so overlap
// checks and inserts are atomic across processes.
type MongoLock struct {
	collection *mongo.Collection
	commit     time.Duration
	now        func() time.Time
}

func NewMongoLock(db *mongo.Database, commitTTL time.Duration) *MongoLock {
	return &MongoLock{
		collection: db.Collection(CollectionName),
		commit:     commitTTL,
		now:        time.Now,
	}
}

func (m *MongoLock) TryClaim(ctx context.Context, tutorID string, start, end time.Time, holderID string, ttl time.Duration) (*Token, error) {
	now := m.now()
	token, err := newToken(tutorID, start, end, holderID, ttl, now)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id": tutorID,
		"claims": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"start":      bson.M{"$lt": token.End},
			"end":        bson.M{"$gt": token.Start},
			"expires_at": bson.M{"$gt": now},
		}}},
	}
	update := bson.M{"$push": bson.M{"claims": token.record(now)}}
	opts := options.Update().SetUpsert(true)

	for attempt := 1; ; attempt++ {
		_, err = m.collection.UpdateOne(ctx, filter, update, opts)
		if err == nil {
			return token, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to claim reservation: %w", err)
		}
		// The arena exists and the filter did not match it: a live overlap.
		if attempt >= claimAttempts {
			return nil, ErrAlreadyClaimed
		}
	}
}

func (m *MongoLock) Commit(ctx context.Context, token *Token, persist func(ctx context.Context) error) error {
	return commitWith(ctx, m, token, m.refresh, persist)
}

func (m *MongoLock) refresh(ctx context.Context, token *Token) error {
	now := m.now()
	expires := now.Add(m.commit).UTC()

	filter := bson.M{
		"_id": token.TutorID,
		"claims": bson.M{"$elemMatch": bson.M{
			"slot_key":   token.SlotKey,
			"holder_id":  token.HolderID,
			"expires_at": bson.M{"$gt": now},
		}},
	}
	update := bson.M{"$set": bson.M{"claims.$.expires_at": expires}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to refresh reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrClaimExpired
	}
	token.ExpiresAt = expires
	return nil
}

func (m *MongoLock) Release(ctx context.Context, token *Token) error {
	if token == nil {
		return nil
	}
	filter := bson.M{"_id": token.TutorID}
	update := bson.M{"$pull": bson.M{"claims": bson.M{
		"slot_key":  token.SlotKey,
		"holder_id": token.HolderID,
	}}}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	return nil
}

// Sweep reports the number of tutor arenas it pruned, not individual claims.
func (m *MongoLock) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired := bson.M{"$lte": now}

	result, err := m.collection.UpdateMany(ctx,
		bson.M{"claims.expires_at": expired},
		bson.M{"$pull": bson.M{"claims": bson.M{"expires_at": expired}}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep reservations: %w", err)
	}

	// Drop arenas left empty so the collection does not grow with tutors.
	if _, err := m.collection.DeleteMany(ctx, bson.M{"claims": bson.M{"$size": 0}}); err != nil {
		return int(result.ModifiedCount), fmt.Errorf("failed to prune reservation arenas: %w", err)
	}
	return int(result.ModifiedCount), nil
}
