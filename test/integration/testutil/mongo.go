package testutil

import (
	availabilityrepo "agenda/internal/availability/repository"
	bookingrepo "agenda/internal/bookings/repository"
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoURI     = "mongodb://localhost:27017"
	DefaultDatabaseName = "agenda"
	ConnectionTimeout   = 10 * time.Second
)

type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
	}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// CleanBookingData empties the agenda collections but keeps them and their
// indexes and validators in place.
func (m *MongoHelper) CleanBookingData(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range []string{
		bookingrepo.CollectionName,
		bookingrepo.LockCollectionName,
		availabilityrepo.RulesCollectionName,
		availabilityrepo.ConfigsCollectionName,
	} {
		if _, err := m.Database.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			t.Fatalf("failed to clean collection %s: %v", name, err)
		}
	}
}

// CountActive counts pending and confirmed bookings of a resource on a date,
// straight from storage.
func (m *MongoHelper) CountActive(t *testing.T, resourceID, date string) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(bookingrepo.CollectionName).CountDocuments(ctx, bson.M{
		"resource_id": resourceID,
		"date":        date,
		"status":      bson.M{"$in": bson.A{"pending", "confirmed"}},
	})
	if err != nil {
		t.Fatalf("failed to count bookings: %v", err)
	}
	return count
}
