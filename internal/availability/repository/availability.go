package repository

import (
	availabilityerrors "agenda/internal/availability/errors"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RulesCollectionName   = "Availability_rules"
	ConfigsCollectionName = "Validation_configs"
)

type AvailabilityRepository interface {
	CreateRule(ctx context.Context, rule *model.AvailabilityRule) error
	FindRuleByID(ctx context.Context, id string) (*model.AvailabilityRule, error)
	FindRulesByResource(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error)
	ReplaceRule(ctx context.Context, rule *model.AvailabilityRule) error
	DeleteRule(ctx context.Context, id string) (*model.AvailabilityRule, error)
	FindConfig(ctx context.Context, resourceID string) (*model.ValidationConfig, error)
	UpsertConfig(ctx context.Context, cfg *model.ValidationConfig) error
}

type mongoAvailabilityRepository struct {
	cfg     *config.Config
	rules   *mongo.Collection
	configs *mongo.Collection
}

func NewMongoAvailabilityRepository(cfg *config.Config) AvailabilityRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoAvailabilityRepository{
		cfg:     cfg,
		rules:   db.Collection(RulesCollectionName),
		configs: db.Collection(ConfigsCollectionName),
	}
}

func (r *mongoAvailabilityRepository) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if _, err := r.rules.InsertOne(ctx, rule); err != nil {
		return fmt.Errorf("failed to create availability rule: %w", err)
	}
	return nil
}

func (r *mongoAvailabilityRepository) FindRuleByID(ctx context.Context, id string) (*model.AvailabilityRule, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var rule model.AvailabilityRule
	if err := r.rules.FindOne(ctx, bson.M{"_id": id}).Decode(&rule); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to find availability rule: %w", err)
	}
	return &rule, nil
}

func (r *mongoAvailabilityRepository) FindRulesByResource(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "day_of_week", Value: 1},
		{Key: "start_time", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := r.rules.Find(ctx, bson.M{"resource_id": resourceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find availability rules: %w", err)
	}
	defer cursor.Close(ctx)

	rules := make([]model.AvailabilityRule, 0)
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode availability rules: %w", err)
	}
	return rules, nil
}

func (r *mongoAvailabilityRepository) ReplaceRule(ctx context.Context, rule *model.AvailabilityRule) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	rule.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.rules.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule)
	if err != nil {
		return fmt.Errorf("failed to update availability rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return availabilityerrors.ErrRuleNotFound
	}
	return nil
}

// DeleteRule returns the removed rule so callers can invalidate by resource.
func (r *mongoAvailabilityRepository) DeleteRule(ctx context.Context, id string) (*model.AvailabilityRule, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var deleted model.AvailabilityRule
	if err := r.rules.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to delete availability rule: %w", err)
	}
	return &deleted, nil
}

func (r *mongoAvailabilityRepository) FindConfig(ctx context.Context, resourceID string) (*model.ValidationConfig, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var cfg model.ValidationConfig
	if err := r.configs.FindOne(ctx, bson.M{"_id": resourceID}).Decode(&cfg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to find validation config: %w", err)
	}
	return &cfg, nil
}

func (r *mongoAvailabilityRepository) UpsertConfig(ctx context.Context, cfg *model.ValidationConfig) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	cfg.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.configs.ReplaceOne(ctx, bson.M{"_id": cfg.ResourceID}, cfg, opts); err != nil {
		return fmt.Errorf("failed to save validation config: %w", err)
	}
	return nil
}
