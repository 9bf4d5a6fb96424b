package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/storage"
)

const usersCollection = "users"

// PrincipalStore keeps principals as documents of the users collection.
// Refresh token rotation relies on single-document atomicity of UpdateOne.
type PrincipalStore struct {
	coll *mongo.Collection
}

var _ storage.PrincipalStore = (*PrincipalStore)(nil)

func NewPrincipalStore(ctx context.Context, db *mongo.Database) (*PrincipalStore, error) {
	coll := db.Collection(usersCollection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("create user indexes: %w", err)
	}

	return &PrincipalStore{coll: coll}, nil
}

func (s *PrincipalStore) CreatePrincipal(ctx context.Context, p *models.Principal) error {
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrPrincipalExists
		}
		return fmt.Errorf("failed to insert principal: %w", err)
	}
	return nil
}

func (s *PrincipalStore) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *PrincipalStore) FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.Principal, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": identifier},
	}})
}

func (s *PrincipalStore) SetRefreshToken(ctx context.Context, id, tokenHash string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, refreshTokenUpdate(tokenHash))
	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrPrincipalNotFound
	}
	return nil
}

func (s *PrincipalStore) SwapRefreshToken(ctx context.Context, id, expectedHash, nextHash string) error {
	if expectedHash == "" {
		return storage.ErrRefreshTokenMismatch
	}

	filter := bson.M{"_id": id, "refreshTokenHash": expectedHash}
	res, err := s.coll.UpdateOne(ctx, filter, refreshTokenUpdate(nextHash))
	if err != nil {
		return fmt.Errorf("failed to swap refresh token: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to count principals: %w", err)
	}
	if n == 0 {
		return storage.ErrPrincipalNotFound
	}
	return storage.ErrRefreshTokenMismatch
}

func (s *PrincipalStore) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	update := bson.M{"$set": bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()}}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set password hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrPrincipalNotFound
	}
	return nil
}

func (s *PrincipalStore) UpdateAccountDetails(ctx context.Context, id, fullName, email string) error {
	update := bson.M{"$set": bson.M{"fullName": fullName, "email": email, "updatedAt": time.Now().UTC()}}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrPrincipalExists
		}
		return fmt.Errorf("failed to update account details: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrPrincipalNotFound
	}
	return nil
}

func refreshTokenUpdate(tokenHash string) bson.M {
	if tokenHash == "" {
		return bson.M{"$unset": bson.M{"refreshTokenHash": ""}}
	}
	return bson.M{"$set": bson.M{"refreshTokenHash": tokenHash}}
}

func (s *PrincipalStore) findOne(ctx context.Context, filter bson.M) (*models.Principal, error) {
	var p models.Principal
	if err := s.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}
	return &p, nil
}
