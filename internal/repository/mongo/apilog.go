// Package mongo stores captured API exchanges in MongoDB.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

const collectionAPILogs = "api_logs"

var _ repository.APILogRepository = (*APILogRepository)(nil)

// apiLogDocument is the stored shape of a domain.APILog.
type apiLogDocument struct {
	ID             string    `bson:"_id"`
	CorrelationID  string    `bson:"correlation_id"`
	PaymentID      string    `bson:"payment_id,omitempty"`
	Method         string    `bson:"method"`
	Endpoint       string    `bson:"endpoint"`
	RequestBody    string    `bson:"request_body,omitempty"`
	ResponseStatus int       `bson:"response_status"`
	ResponseBody   string    `bson:"response_body,omitempty"`
	LatencyMs      int64     `bson:"latency_ms"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (d *apiLogDocument) toDomain() *domain.APILog {
	return &domain.APILog{
		ID:             d.ID,
		CorrelationID:  d.CorrelationID,
		PaymentID:      d.PaymentID,
		Method:         d.Method,
		Endpoint:       d.Endpoint,
		RequestBody:    d.RequestBody,
		ResponseStatus: d.ResponseStatus,
		ResponseBody:   d.ResponseBody,
		LatencyMs:      d.LatencyMs,
		CreatedAt:      d.CreatedAt,
	}
}

// APILogRepository is a MongoDB implementation of repository.APILogRepository.
type APILogRepository struct {
	collection *mongo.Collection
}

// NewAPILogRepository creates a repository over the api_logs collection of database.
func NewAPILogRepository(client *mongo.Client, database string) *APILogRepository {
	return &APILogRepository{collection: client.Database(database).Collection(collectionAPILogs)}
}

// EnsureIndexes creates the indexes used by Recent and ListByPaymentID.
func (r *APILogRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "payment_id", Value: 1}}},
	})
	return err
}

// Create persists a captured exchange.
func (r *APILogRepository) Create(ctx context.Context, l *domain.APILog) error {
	_, err := r.collection.InsertOne(ctx, apiLogDocument{
		ID:             l.ID,
		CorrelationID:  l.CorrelationID,
		PaymentID:      l.PaymentID,
		Method:         l.Method,
		Endpoint:       l.Endpoint,
		RequestBody:    l.RequestBody,
		ResponseStatus: l.ResponseStatus,
		ResponseBody:   l.ResponseBody,
		LatencyMs:      l.LatencyMs,
		CreatedAt:      l.CreatedAt,
	})
	return err
}

// Recent returns at most limit logs, newest first.
func (r *APILogRepository) Recent(ctx context.Context, limit int) ([]*domain.APILog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.D{}, opts)
}

// ListByPaymentID returns the logs joined to a payment, newest first.
func (r *APILogRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.APILog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.D{{Key: "payment_id", Value: paymentID}}, opts)
}

// Samples returns the status and latency of every stored log.
func (r *APILogRepository) Samples(ctx context.Context) ([]repository.LogSample, error) {
	opts := options.Find().SetProjection(bson.D{
		{Key: "response_status", Value: 1},
		{Key: "latency_ms", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []apiLogDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	samples := make([]repository.LogSample, 0, len(docs))
	for _, d := range docs {
		samples = append(samples, repository.LogSample{ResponseStatus: d.ResponseStatus, LatencyMs: d.LatencyMs})
	}
	return samples, nil
}

func (r *APILogRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*domain.APILog, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []apiLogDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	logs := make([]*domain.APILog, 0, len(docs))
	for i := range docs {
		logs = append(logs, docs[i].toDomain())
	}
	return logs, nil
}
