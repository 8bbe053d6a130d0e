package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
)

// MirrorCredentialRepository defines the operations on the document mirror of user credentials.
type MirrorCredentialRepository interface {
	// InsertCredential stores a new mirror credential and sets its ID.
	InsertCredential(ctx context.Context, credential *model.MirrorCredential) (*model.MirrorCredential, error)

	// GetCredentialByUsername returns the mirror credential for username or ErrNotFound.
	GetCredentialByUsername(ctx context.Context, username string) (*model.MirrorCredential, error)

	// UpdateBackLink points the credential at canonicalID. It does not write when the
	// stored back-link already matches, and is a no-op when no credential exists.
	UpdateBackLink(ctx context.Context, username string, canonicalID int64) error

	// UpsertPasswordHash sets the password hash, creating the credential when absent.
	// A credential already holding a newer PasswordVersion is left untouched, so
	// the mirror never moves back to an older canonical hash.
	UpsertPasswordHash(ctx context.Context, params UpsertPasswordHashParams) error
}

// UpsertPasswordHashParams defines the values written by UpsertPasswordHash.
// Email and CanonicalID are only used when the credential has to be created.
type UpsertPasswordHashParams struct {
	Username        string
	Email           string
	PasswordHash    string
	PasswordVersion int64
	CanonicalID     int64
}

const mirrorCredentialCollection = "users"

type mirrorCredentialMongoRepository struct {
	db *mongo.Database
}

// NewMirrorCredentialMongoRepository creates the mirror repository and ensures its indexes.
// Index failures are logged only: the mirror must not stop the service from starting.
func NewMirrorCredentialMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) MirrorCredentialRepository {
	collection := db.Collection(mirrorCredentialCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "sql_user_id", Value: 1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Warn().Err(err).Msg("failed to create mirror credential indexes")
	}

	return &mirrorCredentialMongoRepository{db: db}
}

func (r *mirrorCredentialMongoRepository) InsertCredential(
	ctx context.Context,
	credential *model.MirrorCredential,
) (*model.MirrorCredential, error) {
	now := time.Now().UTC()
	credential.CreatedAt = now
	credential.UpdatedAt = now

	result, err := r.db.Collection(mirrorCredentialCollection).InsertOne(ctx, credential)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}
	credential.ID = objectID

	return credential, nil
}

func (r *mirrorCredentialMongoRepository) GetCredentialByUsername(
	ctx context.Context,
	username string,
) (*model.MirrorCredential, error) {
	var credential model.MirrorCredential
	err := r.db.Collection(mirrorCredentialCollection).
		FindOne(ctx, bson.M{"username": username}).
		Decode(&credential)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &credential, nil
}

func (r *mirrorCredentialMongoRepository) UpdateBackLink(
	ctx context.Context,
	username string,
	canonicalID int64,
) error {
	filter, update := backLinkUpdate(username, canonicalID, time.Now().UTC())

	_, err := r.db.Collection(mirrorCredentialCollection).UpdateOne(ctx, filter, update)
	return err
}

func (r *mirrorCredentialMongoRepository) UpsertPasswordHash(
	ctx context.Context,
	params UpsertPasswordHashParams,
) error {
	collection := r.db.Collection(mirrorCredentialCollection)
	filter, update := passwordHashUpdate(params, time.Now().UTC())

	_, err := collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}

	// The username exists but the filter did not match it: either a concurrent upsert
	// created it first, or it already holds a newer version and this update is a no-op.
	_, err = collection.UpdateOne(ctx, filter, bson.M{"$set": update["$set"]})
	return err
}

// backLinkUpdate matches the credential only while its back-link differs from canonicalID.
func backLinkUpdate(username string, canonicalID int64, now time.Time) (filter, update bson.M) {
	filter = bson.M{
		"username":    username,
		"sql_user_id": bson.M{"$ne": canonicalID},
	}
	update = bson.M{
		"$set": bson.M{
			"sql_user_id": canonicalID,
			"updated_at":  now,
		},
	}

	return filter, update
}

// passwordHashUpdate matches the credential only while its stored version is not newer
// than params.PasswordVersion. Credentials that were never synced carry no version.
func passwordHashUpdate(params UpsertPasswordHashParams, now time.Time) (filter, update bson.M) {
	filter = bson.M{
		"username": params.Username,
		"$or": bson.A{
			bson.M{"password_version": bson.M{"$exists": false}},
			bson.M{"password_version": bson.M{"$lte": params.PasswordVersion}},
		},
	}

	onInsert := bson.M{
		"email":      params.Email,
		"created_at": now,
	}
	if params.CanonicalID > 0 {
		onInsert["sql_user_id"] = params.CanonicalID
	}

	update = bson.M{
		"$set": bson.M{
			"password_hash":    params.PasswordHash,
			"password_version": params.PasswordVersion,
			"updated_at":       now,
		},
		"$setOnInsert": onInsert,
	}

	return filter, update
}
