package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/videotube/account-service/internal/core/domain"
)

const usersCollection = "users"

type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique indexes backing the username/email
// uniqueness invariant. Call once at startup.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	FullName     string             `bson:"full_name"`
	AvatarURL    string             `bson:"avatar,omitempty"`
	CoverURL     string             `bson:"cover_image,omitempty"`
	PasswordHash string             `bson:"password_hash"`
	RefreshToken string             `bson:"refresh_token,omitempty"`
	CreatedAt    int64              `bson:"created_at"`
	UpdatedAt    int64              `bson:"updated_at"`
}

func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	doc := mongoUser{
		Username:     user.Username,
		Email:        user.Email,
		FullName:     user.FullName,
		AvatarURL:    user.AvatarURL,
		CoverURL:     user.CoverURL,
		PasswordHash: user.PasswordHash,
		CreatedAt:    now.Unix(),
		UpdatedAt:    now.Unix(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, _ := res.InsertedID.(primitive.ObjectID)
	doc.ID = id
	return toDomain(&doc), nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByUsernameOrEmail runs the OR predicate as a single query, so both
// fields are evaluated against one consistent snapshot.
func (r *MongoUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}})
}

func (r *MongoUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"refresh_token": token, "updated_at": time.Now().UTC().Unix()}})
}

// RotateRefreshToken is a compare-and-swap: the update filter matches the
// stored token, so only one of any concurrent rotations presenting the same
// token can succeed. A filter miss on an existing user means the token was
// already rotated away.
func (r *MongoUserRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "refresh_token": current},
		bson.M{"$set": bson.M{"refresh_token": next, "updated_at": time.Now().UTC().Unix()}},
	)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRefreshReused
	}
	return nil
}

// ClearRefreshToken unsets the field entirely (no session), rather than
// writing an empty string.
func (r *MongoUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$unset": bson.M{"refresh_token": 1}})
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC().Unix()}})
}

func (r *MongoUserRepository) UpdateFullName(ctx context.Context, id, fullName string) (*domain.User, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{"full_name": fullName}, options.After)
}

func (r *MongoUserRepository) UpdateAvatarURL(ctx context.Context, id, url string) (*domain.User, string, error) {
	prev, err := r.findOneAndUpdate(ctx, id, bson.M{"avatar": url}, options.Before)
	if err != nil {
		return nil, "", err
	}
	// Re-read rather than patching the before image, so the caller sees the
	// stored timestamps and any concurrent field changes.
	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return updated, prev.AvatarURL, nil
}

func (r *MongoUserRepository) UpdateCoverURL(ctx context.Context, id, url string) (*domain.User, string, error) {
	prev, err := r.findOneAndUpdate(ctx, id, bson.M{"cover_image": url}, options.Before)
	if err != nil {
		return nil, "", err
	}
	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return updated, prev.CoverURL, nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return toDomain(&mu), nil
}

// findOneAndUpdate applies a $set and returns the document either before or
// after the update, so callers can see the superseded values when they need to.
func (r *MongoUserRepository) findOneAndUpdate(ctx context.Context, id string, set bson.M, ret options.ReturnDocument) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	set["updated_at"] = time.Now().UTC().Unix()
	var mu mongoUser
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(ret),
	).Decode(&mu)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return toDomain(&mu), nil
}

func (r *MongoUserRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func toDomain(mu *mongoUser) *domain.User {
	return &domain.User{
		ID:           mu.ID.Hex(),
		Username:     mu.Username,
		Email:        mu.Email,
		FullName:     mu.FullName,
		AvatarURL:    mu.AvatarURL,
		CoverURL:     mu.CoverURL,
		PasswordHash: mu.PasswordHash,
		RefreshToken: mu.RefreshToken,
		CreatedAt:    unixToTime(mu.CreatedAt),
		UpdatedAt:    unixToTime(mu.UpdatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
