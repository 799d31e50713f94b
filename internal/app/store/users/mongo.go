// internal/app/store/users/mongo.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratagate/internal/app/system/normalize"
	"github.com/dalemusser/stratagate/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoUser is the stored form of a user.
type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id"`
	Email        string             `bson:"email"`
	EmailCI      string             `bson:"email_ci"` // folded for case/diacritic-insensitive matching
	Username     string             `bson:"username,omitempty"`
	PasswordHash string             `bson:"password_hash"`
	Log          string             `bson:"log"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (m mongoUser) model() *models.User {
	return &models.User{
		ID:           m.ID.Hex(),
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Log:          m.Log,
		CreatedAt:    m.CreatedAt,
	}
}

// MongoStore keeps users in the users collection.
type MongoStore struct {
	db *mongo.Database
	c  *mongo.Collection
}

// NewMongoStore creates a MongoStore.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, c: db.Collection("users")}
}

// EnsureIndexes creates the unique email index. It closes the gap between
// the lookup and the insert during registration.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email_ci", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_users_email_ci"),
	})
	return err
}

func emailCI(email string) string {
	return text.Fold(normalize.Email(email))
}

// FindByEmail implements Store.
func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var m mongoUser
	err := s.c.FindOne(ctx, bson.M{"email_ci": emailCI(email)}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.model(), nil
}

// Create implements Store.
func (s *MongoStore) Create(ctx context.Context, u models.User) (*models.User, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	m := mongoUser{
		ID:           primitive.NewObjectID(),
		Email:        u.Email,
		EmailCI:      emailCI(u.Email),
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Log:          u.Log,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    now,
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return m.model(), nil
}

func (s *MongoStore) set(ctx context.Context, id string, fields bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	fields["updated_at"] = time.Now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLog implements Store.
func (s *MongoStore) UpdateLog(ctx context.Context, id, log string) error {
	return s.set(ctx, id, bson.M{"log": log})
}

// UpdatePasswordHash implements Store.
func (s *MongoStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.set(ctx, id, bson.M{"password_hash": hash})
}

// Ping implements Store.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}
