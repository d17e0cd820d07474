package repository

import (
	bookingserrors "agenda/internal/bookings/errors"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error)
	CountByClient(ctx context.Context, resourceID, email string) (int64, error)
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error)
	FindDue(ctx context.Context, status model.BookingStatus, onOrBefore string, limit int) ([]model.Booking, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return bookingserrors.Repository("create", fmt.Errorf("failed to create booking: %w", err))
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, bookingserrors.Repository("find_by_id", fmt.Errorf("failed to find booking: %w", err))
	}
	return &booking, nil
}

// FindByResourceAndDate returns every booking of the day, any status, by start time then id.
func (r *mongoBookingRepository) FindByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"resource_id": resourceID, "date": date}
	opts := options.Find().SetSort(bson.D{
		{Key: "start_time", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, bookingserrors.Repository("find_by_resource_and_date", fmt.Errorf("failed to find bookings: %w", err))
	}
	defer cursor.Close(ctx)

	bookings := make([]model.Booking, 0)
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, bookingserrors.Repository("find_by_resource_and_date", fmt.Errorf("failed to decode bookings: %w", err))
	}
	return bookings, nil
}

func (r *mongoBookingRepository) CountByClient(ctx context.Context, resourceID, email string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"resource_id":  resourceID,
		"client_email": strings.ToLower(strings.TrimSpace(email)),
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, bookingserrors.Repository("count_by_client", fmt.Errorf("failed to count client bookings: %w", err))
	}
	return count, nil
}

// UpdateStatus moves a booking from one status to another only if it is still
// at from. ErrStaleStatus means another writer got there first.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": from}
	update := bson.M{
		"$set": bson.M{
			"status":     to,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrStaleStatus
		}
		return nil, bookingserrors.Repository("update_status", fmt.Errorf("failed to update booking status: %w", err))
	}
	return &updated, nil
}

// FindDue lists bookings in status whose date is on or before the given day.
func (r *mongoBookingRepository) FindDue(ctx context.Context, status model.BookingStatus, onOrBefore string, limit int) ([]model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status": status,
		"date":   bson.M{"$lte": onOrBefore},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, bookingserrors.Repository("find_due", fmt.Errorf("failed to find due bookings: %w", err))
	}
	defer cursor.Close(ctx)

	bookings := make([]model.Booking, 0)
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, bookingserrors.Repository("find_due", fmt.Errorf("failed to decode due bookings: %w", err))
	}
	return bookings, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
