package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (mdb *MongodbRepo) CreateBooking(ctx context.Context, booking *Booking) error {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return err
	}
	if _, err := col.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateBooking
		}
		return mongoErr("insert booking", err)
	}
	return nil
}

func (mdb *MongodbRepo) findBooking(ctx context.Context, filter bson.M) (*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, err
	}
	var booking Booking
	if err := col.FindOne(ctx, filter).Decode(&booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (mdb *MongodbRepo) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	booking, err := mdb.findBooking(ctx, bson.M{"_id": id})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBookingNotFound
		}
		return nil, mongoErr("find booking", err)
	}
	return booking, nil
}

func (mdb *MongodbRepo) FindByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (*Booking, error) {
	booking, err := mdb.findBooking(ctx, bson.M{"user_id": userID, "event_id": eventID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, mongoErr("find booking by user and event", err)
	}
	return booking, nil
}

// cancelBookingDocs only matches a booking that is still confirmed.
func cancelBookingDocs(id uuid.UUID, reason string, at time.Time) (bson.M, bson.M) {
	filter := bson.M{"_id": id, "status": BookingConfirmed}
	update := bson.M{"$set": bson.M{
		"status":              BookingCancelled,
		"cancelled_at":        at,
		"cancellation_reason": reason,
	}}
	return filter, update
}

func (mdb *MongodbRepo) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, err
	}

	filter, update := cancelBookingDocs(id, reason, at)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking Booking
	err = col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, mongoErr("cancel booking", err)
	}
	if _, err := mdb.GetBooking(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrAlreadyCancelled
}

func bookingFilterDoc(f BookingFilter) bson.M {
	filter := bson.M{}
	if f.UserID != uuid.Nil {
		filter["user_id"] = f.UserID
	}
	if f.EventID != uuid.Nil {
		filter["event_id"] = f.EventID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (mdb *MongodbRepo) ListBookings(ctx context.Context, f BookingFilter) ([]*Booking, int, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, 0, err
	}

	filter := bookingFilterDoc(f)
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mongoErr("count bookings", err)
	}

	_, limit, offset := PageBounds(f.Page, f.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "booking_date", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mongoErr("find bookings", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*Booking, 0, limit)
	for cursor.Next(ctx) {
		var booking Booking
		if err := cursor.Decode(&booking); err != nil {
			return nil, 0, fmt.Errorf("error decoding booking: %v", err)
		}
		bookings = append(bookings, &booking)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, mongoErr("bookings cursor", err)
	}

	return bookings, int(total), nil
}

func (mdb *MongodbRepo) CountByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return 0, err
	}
	n, err := col.CountDocuments(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return 0, mongoErr("count event bookings", err)
	}
	return int(n), nil
}
