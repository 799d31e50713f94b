// internal/app/store/ratelimit/mongo.go
package ratelimit

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt tracks failed login attempts for one client address.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Addr         string             `bson:"addr"`          // Normalized client address
	AttemptCount int                `bson:"attempt_count"` // Failed attempts in current window
	WindowStart  time.Time          `bson:"window_start"`  // When the current counting window started
	LastAttempt  time.Time          `bson:"last_attempt"`  // Most recent failure (for TTL cleanup)
	CreatedAt    time.Time          `bson:"created_at"`
}

// MongoBackend keeps counters in a MongoDB collection, for deployments that
// already run Mongo as the user store.
type MongoBackend struct {
	c *mongo.Collection
}

// NewMongoBackend creates a MongoBackend on the rate_limits collection.
func NewMongoBackend(db *mongo.Database) *MongoBackend {
	return &MongoBackend{c: db.Collection("rate_limits")}
}

const ttlIndexName = "idx_ratelimit_ttl"

// EnsureIndexes creates the unique address index and, when window > 0, a TTL
// index that removes counters one window after their last failure.
//
// An existing TTL index is brought in line with window: its expiry is changed
// in place with collMod, or it is dropped when window is 0.
func (b *MongoBackend) EnsureIndexes(ctx context.Context, window time.Duration) error {
	var secs int32
	if window > 0 {
		secs = int32(window / time.Second)
		if secs < 1 {
			secs = 1
		}
	}
	if err := b.reconcileTTL(ctx, secs); err != nil {
		return err
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "addr", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_ratelimit_addr"),
		},
	}
	if secs > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "last_attempt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(secs).SetName(ttlIndexName),
		})
	}
	_, err := b.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// reconcileTTL updates or drops an existing TTL index whose expiry differs
// from secs (0 meaning no TTL index). A missing index is left to CreateMany.
func (b *MongoBackend) reconcileTTL(ctx context.Context, secs int32) error {
	cur, err := b.c.Indexes().List(ctx)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	var existing *int64
	for cur.Next(ctx) {
		var idx struct {
			Name               string `bson:"name"`
			ExpireAfterSeconds *int64 `bson:"expireAfterSeconds"`
		}
		if err := cur.Decode(&idx); err != nil {
			return err
		}
		if idx.Name == ttlIndexName {
			v := int64(-1)
			if idx.ExpireAfterSeconds != nil {
				v = *idx.ExpireAfterSeconds
			}
			existing = &v
			break
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}

	switch {
	case existing == nil || *existing == int64(secs):
		return nil
	case secs == 0 || *existing < 0:
		_, err := b.c.Indexes().DropOne(ctx, ttlIndexName)
		return err
	default:
		cmd := bson.D{
			{Key: "collMod", Value: b.c.Name()},
			{Key: "index", Value: bson.D{
				{Key: "name", Value: ttlIndexName},
				{Key: "expireAfterSeconds", Value: secs},
			}},
		}
		return b.c.Database().RunCommand(ctx, cmd).Err()
	}
}

// Count implements Backend.
func (b *MongoBackend) Count(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	var attempt Attempt
	err := b.c.FindOne(ctx, bson.M{"addr": key}).Decode(&attempt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if expired(attempt.WindowStart, window, now) {
		return 0, nil
	}
	return attempt.AttemptCount, nil
}

// Increment implements Backend.
//
// An expired window is restarted with a conditional update first; the
// increment itself is a single upserting $inc, so concurrent failures are
// all counted.
func (b *MongoBackend) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	if window > 0 {
		_, err := b.c.UpdateOne(ctx,
			bson.M{"addr": key, "window_start": bson.M{"$lte": now.Add(-window)}},
			bson.M{"$set": bson.M{"attempt_count": 0, "window_start": now}},
		)
		if err != nil {
			return 0, err
		}
	}

	update := bson.M{
		"$inc":         bson.M{"attempt_count": 1},
		"$set":         bson.M{"last_attempt": now},
		"$setOnInsert": bson.M{"window_start": now, "created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var attempt Attempt
	err := b.c.FindOneAndUpdate(ctx, bson.M{"addr": key}, update, opts).Decode(&attempt)
	if err != nil && wafflemongo.IsDup(err) {
		// Lost an upsert race on the unique index; the document exists now.
		err = b.c.FindOneAndUpdate(ctx, bson.M{"addr": key}, update, opts).Decode(&attempt)
	}
	if err != nil {
		return 0, err
	}
	return attempt.AttemptCount, nil
}

// Prune implements Pruner. The TTL index normally does this; Prune covers
// the gap between TTL monitor passes.
func (b *MongoBackend) Prune(ctx context.Context, window time.Duration, now time.Time) (int, error) {
	res, err := b.c.DeleteMany(ctx, bson.M{"window_start": bson.M{"$lte": now.Add(-window)}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
