package repository

import (
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Admission_locks"

// AdmissionLockRepository stores cross-instance admission locks. A TTL index on
// expires_at reaps locks left behind by a crashed holder.
type AdmissionLockRepository interface {
	// Create returns a duplicate key error while the lock is held.
	Create(ctx context.Context, lock *model.AdmissionLock) error
	Delete(ctx context.Context, lockID, owner string) error
	// DeleteExpired removes a lock whose holder overran its TTL.
	DeleteExpired(ctx context.Context, lockID string, now time.Time) error
}

type mongoAdmissionLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewAdmissionLockRepository(cfg *config.Config) AdmissionLockRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoAdmissionLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoAdmissionLockRepository) Create(ctx context.Context, lock *model.AdmissionLock) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	lock.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, lock)
	return err
}

func (r *mongoAdmissionLockRepository) Delete(ctx context.Context, lockID, owner string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	return err
}

func (r *mongoAdmissionLockRepository) DeleteExpired(ctx context.Context, lockID string, now time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "expires_at": bson.M{"$lt": now}})
	return err
}
