package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized: %w", ErrStorageUnavailable)
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the indexes the stores rely on, most importantly the
// unique (user_id, event_id) pair on bookings.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	bookings, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return err
	}
	_, err = bookings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("user_event_unique"),
		},
		{Keys: bson.D{{Key: "event_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "booking_date", Value: -1}}},
	})
	if err != nil {
		return mongoErr("create booking indexes", err)
	}

	events, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return err
	}
	_, err = events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	})
	if err != nil {
		return mongoErr("create event indexes", err)
	}
	return nil
}

// mongoErr tags transient driver failures with ErrStorageUnavailable.
func mongoErr(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (mdb *MongodbRepo) CreateEvent(ctx context.Context, event *Event) error {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return err
	}
	if _, err := col.InsertOne(ctx, event); err != nil {
		return mongoErr("insert event", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, err
	}
	var event Event
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, mongoErr("find event", err)
	}
	return &event, nil
}

func (mdb *MongodbRepo) UpdateEvent(ctx context.Context, event *Event) error {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return err
	}

	// booked_seats is only moved by AdjustBookedSeats; the filter keeps a
	// shrinking capacity from dropping below it.
	filter := bson.M{"_id": event.ID, "booked_seats": bson.M{"$lte": event.Capacity}}
	update := bson.M{"$set": bson.M{
		"title":         event.Title,
		"description":   event.Description,
		"category":      event.Category,
		"location":      event.Location,
		"location_type": event.LocationType,
		"date":          event.Date,
		"time":          event.Time,
		"duration":      event.Duration,
		"capacity":      event.Capacity,
		"price":         event.Price,
		"image":         event.Image,
		"updated_at":    event.UpdatedAt,
	}}

	res, err := col.UpdateOne(ctx, filter, update)
	if err != nil {
		return mongoErr("update event", err)
	}
	if res.MatchedCount == 0 {
		if _, err := mdb.GetEvent(ctx, event.ID); err != nil {
			return err
		}
		return errCapacityBelowBooked
	}
	return nil
}

func (mdb *MongodbRepo) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	n, err := mdb.CountByEvent(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrHasDependents
	}

	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mongoErr("delete event", err)
	}
	if res.DeletedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (mdb *MongodbRepo) AdjustBookedSeats(ctx context.Context, id uuid.UUID, delta int) (*Event, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, err
	}

	filter, update := adjustSeatsDocs(id, delta, time.Now().UTC())
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var event Event
	err = col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&event)
	if err == nil {
		return &event, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, mongoErr("adjust booked seats", err)
	}

	// Nothing matched: either the event is gone or the guard rejected delta.
	if _, err := mdb.GetEvent(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrCapacityExceeded
}

// adjustSeatsDocs builds a single conditional update: the filter only matches
// while booked_seats+delta stays within [0, capacity].
func adjustSeatsDocs(id uuid.UUID, delta int, now time.Time) (bson.M, bson.M) {
	next := bson.M{"$add": bson.A{"$booked_seats", delta}}
	filter := bson.M{
		"_id": id,
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{next, 0}},
			bson.M{"$lte": bson.A{next, "$capacity"}},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"booked_seats": delta},
		"$set": bson.M{"updated_at": now},
	}
	return filter, update
}

func eventFilterDoc(f EventFilter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.LocationType != "" {
		filter["location_type"] = f.LocationType
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
			bson.M{"location": rx},
		}
	}

	date := bson.M{}
	if f.From != nil {
		date["$gte"] = *f.From
	}
	if f.To != nil {
		date["$lte"] = *f.To
	}

	endsAt := bson.M{"$add": bson.A{"$date", bson.M{"$multiply": bson.A{"$duration", 60000}}}}
	switch f.Status {
	case EventUpcoming:
		date["$gt"] = f.Now
	case EventOngoing:
		date["$lte"] = minTime(date["$lte"], f.Now)
		filter["$expr"] = bson.M{"$gt": bson.A{endsAt, f.Now}}
	case EventCompleted:
		filter["$expr"] = bson.M{"$lte": bson.A{endsAt, f.Now}}
	}
	if len(date) > 0 {
		filter["date"] = date
	}
	return filter
}

func minTime(current interface{}, t time.Time) time.Time {
	if c, ok := current.(time.Time); ok && c.Before(t) {
		return c
	}
	return t
}

func (mdb *MongodbRepo) ListEvents(ctx context.Context, f EventFilter) ([]*Event, int, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, 0, err
	}

	filter := eventFilterDoc(f)
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mongoErr("count events", err)
	}

	_, limit, offset := PageBounds(f.Page, f.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mongoErr("find events", err)
	}
	defer cursor.Close(ctx)

	events := make([]*Event, 0, limit)
	for cursor.Next(ctx) {
		var event Event
		if err := cursor.Decode(&event); err != nil {
			return nil, 0, fmt.Errorf("error decoding event: %v", err)
		}
		events = append(events, &event)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, mongoErr("events cursor", err)
	}

	return events, int(total), nil
}

func (mdb *MongodbRepo) Categories(ctx context.Context) ([]Category, error) {
	col, err := mdb.GetCollection(ctx, EventsColName)
	if err != nil {
		return nil, err
	}
	raw, err := col.Distinct(ctx, "category", bson.M{})
	if err != nil {
		return nil, mongoErr("distinct categories", err)
	}
	categories := make([]Category, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			categories = append(categories, Category(s))
		}
	}
	return categories, nil
}
