// internal/app/store/sessions/mongo.go
package sessions

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoSession is the stored form of a session.
type mongoSession struct {
	Token     string     `bson:"token"`
	Session   `bson:",inline"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// MongoBackend keeps sessions in the sessions collection. A unique index on
// token makes Insert an atomic insert-if-absent.
//
// With ttl > 0 a session expires together with the cookie that carries its
// token: Get treats it as absent once ttl has passed, and a TTL index on
// expires_at removes it. This is storage cleanup for tokens no browser can
// present any more, not a session timeout. With ttl == 0 sessions live until
// revoked, as with MemoryBackend.
type MongoBackend struct {
	c   *mongo.Collection
	ttl time.Duration
}

// NewMongoBackend creates a MongoBackend.
func NewMongoBackend(db *mongo.Database, ttl time.Duration) *MongoBackend {
	return &MongoBackend{c: db.Collection("sessions"), ttl: ttl}
}

// EnsureIndexes creates the token and expiry indexes.
func (b *MongoBackend) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_session_token"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_session_user"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_session_ttl"),
		},
	}
	_, err := b.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Insert implements Backend.
func (b *MongoBackend) Insert(ctx context.Context, token string, sess Session) (bool, error) {
	doc := mongoSession{Token: token, Session: sess}
	if b.ttl > 0 {
		exp := sess.CreatedAt.Add(b.ttl)
		doc.ExpiresAt = &exp
	}
	if _, err := b.c.InsertOne(ctx, doc); err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get implements Backend. Sessions past expires_at are treated as absent
// even before the TTL monitor removes them.
func (b *MongoBackend) Get(ctx context.Context, token string) (Session, bool, error) {
	var doc mongoSession
	err := b.c.FindOne(ctx, bson.M{"token": token}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	if doc.ExpiresAt != nil && !time.Now().Before(*doc.ExpiresAt) {
		return Session{}, false, nil
	}
	return doc.Session, true, nil
}

// Delete implements Backend.
func (b *MongoBackend) Delete(ctx context.Context, token string) error {
	_, err := b.c.DeleteOne(ctx, bson.M{"token": token})
	return err
}

// DeleteExpired removes sessions whose expiry has passed.
func (b *MongoBackend) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := b.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
