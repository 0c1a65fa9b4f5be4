package consultations

import (
	"context"
	"time"

	"wisebox-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, c models.Consultation) error
	// ActiveOnDate returns the bookings of a day that still hold their slot.
	ActiveOnDate(ctx context.Context, date string) ([]models.Consultation, error)
	List(ctx context.Context, filter ListFilter, limit, offset int64) ([]models.Consultation, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	GetByID(ctx context.Context, id string) (models.Consultation, error)
	UpdateStatus(ctx context.Context, id string, status string, now time.Time) (models.Consultation, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, c models.Consultation) error {
	_, err := r.col.InsertOne(ctx, c)
	return err
}

func (r *MongoRepository) ActiveOnDate(ctx context.Context, date string) ([]models.Consultation, error) {
	query := bson.M{
		"date":   date,
		"status": bson.M{"$ne": models.ConsultationCanceled},
	}
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "time", Value: 1}}))
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]models.Consultation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	return r.find(ctx, r.filterToBSON(filter), opts)
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(filter))
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (models.Consultation, error) {
	var c models.Consultation
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return models.Consultation{}, err
	}
	return c, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id string, status string, now time.Time) (models.Consultation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": now,
		},
	}

	var updated models.Consultation
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return models.Consultation{}, err
	}
	return updated, nil
}

func (r *MongoRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Consultation, error) {
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Consultation, 0)
	for cursor.Next(ctx) {
		var c models.Consultation
		if err := cursor.Decode(&c); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Date != "" {
		query["date"] = filter.Date
	}
	return query
}
