package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const rawResponsesCollection = "raw_responses"

// RawResponse is the unparsed model answer for one pair, kept for auditing
// evaluations whose JSON could not be parsed.
type RawResponse struct {
	RequestID    string    `bson:"request_id"`
	PairKey      string    `bson:"pair_key"`
	Filename     string    `bson:"filename"`
	Model        string    `bson:"model"`
	Response     string    `bson:"response"`
	Truncated    bool      `bson:"truncated"`
	InputTokens  int       `bson:"input_tokens"`
	OutputTokens int       `bson:"output_tokens"`
	CreatedAt    time.Time `bson:"created_at"`
}

// MongoArchive stores raw responses in MongoDB.
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectMongoArchive connects and pings MongoDB.
func ConnectMongoArchive(ctx context.Context, uri, dbName string) (*MongoArchive, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(dbName).Collection(rawResponsesCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "request_id", Value: 1}, {Key: "pair_key", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create raw_responses index: %w", err)
	}

	return &MongoArchive{client: client, collection: coll}, nil
}

// Archive inserts one raw response.
func (a *MongoArchive) Archive(ctx context.Context, doc RawResponse) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("archive raw response for %s: %w", doc.PairKey, err)
	}
	return nil
}

// FindByRequest returns the archived responses for one upload request.
func (a *MongoArchive) FindByRequest(ctx context.Context, requestID string) ([]RawResponse, error) {
	cur, err := a.collection.Find(ctx, bson.M{"request_id": requestID},
		options.Find().SetSort(bson.D{{Key: "pair_key", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []RawResponse
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Close disconnects from MongoDB.
func (a *MongoArchive) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}

// NoopArchive discards raw responses; used when MONGO_URI is not set.
type NoopArchive struct{}

func (NoopArchive) Archive(context.Context, RawResponse) error { return nil }

func (NoopArchive) Close(context.Context) error { return nil }
