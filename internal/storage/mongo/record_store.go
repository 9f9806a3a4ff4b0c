// Package mongo stores the question corpus in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/pyq-crawler/internal/question"
)

// Defaults for the corpus location.
const (
	DefaultDatabase   = "pyq"
	DefaultCollection = "questions"
	connectTimeout    = 10 * time.Second
)

// Config captures the parameters required to reach the corpus.
type Config struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// RecordStore implements question.Store on a MongoDB collection.
type RecordStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// Connect dials MongoDB and pings it. An unreachable store is fatal to the
// caller.
func Connect(ctx context.Context, cfg Config) (*RecordStore, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &RecordStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Insert writes one record.
func (s *RecordStore) Insert(ctx context.Context, rec question.Record) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return &question.PersistenceError{Op: "insert", ID: rec.ID, Err: err}
	}
	return nil
}

// Scan returns up to limit records with ids greater than afterID, ascending.
func (s *RecordStore) Scan(ctx context.Context, afterID string, limit int) ([]question.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.coll.Find(ctx, scanFilter(afterID), opts)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	defer cursor.Close(ctx)

	var out []question.Record
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out, nil
}

// Update applies the patch with a single $set.
func (s *RecordStore) Update(ctx context.Context, id string, patch question.Patch) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, updateDocument(patch, s.now()))
	if err != nil {
		return &question.PersistenceError{Op: "update", ID: id, Err: err}
	}
	if res.MatchedCount == 0 {
		return &question.PersistenceError{Op: "update", ID: id, Err: question.ErrNotFound}
	}
	return nil
}

// Delete removes one record.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return &question.PersistenceError{Op: "delete", ID: id, Err: err}
	}
	if res.DeletedCount == 0 {
		return &question.PersistenceError{Op: "delete", ID: id, Err: question.ErrNotFound}
	}
	return nil
}

// DuplicateGroups runs the grouping server-side so only multi-member groups
// leave the database.
func (s *RecordStore) DuplicateGroups(ctx context.Context, prefixLen int) ([]question.DuplicateGroup, error) {
	cursor, err := s.coll.Aggregate(ctx, duplicateGroupsPipeline(prefixLen), options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, fmt.Errorf("group duplicates: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []question.DuplicateGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode duplicate groups: %w", err)
	}
	return groups, nil
}

// EnsureIndexes creates the (exam, year) and full-text indexes.
func (s *RecordStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.coll.Indexes().CreateMany(ctx, indexModels()); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *RecordStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

func scanFilter(afterID string) bson.M {
	if afterID == "" {
		return bson.M{}
	}
	return bson.M{"_id": bson.M{"$gt": afterID}}
}

func updateDocument(patch question.Patch, now time.Time) bson.M {
	return bson.M{"$set": bson.M(patch.Fields(now))}
}

func indexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "exam", Value: 1}, {Key: "year", Value: 1}},
			Options: options.Index().SetName("exam_year"),
		},
		{
			Keys:    bson.D{{Key: "question", Value: "text"}, {Key: "topicTags", Value: "text"}},
			Options: options.Index().SetName("question_topic_text").SetDefaultLanguage("none"),
		},
	}
}

func duplicateGroupsPipeline(prefixLen int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "exam", Value: "$exam"},
				{Key: "year", Value: "$year"},
				{Key: "lang", Value: "$lang"},
				{Key: "prefix", Value: bson.D{{Key: "$substrCP", Value: bson.A{
					bson.D{{Key: "$ifNull", Value: bson.A{"$question", ""}}}, 0, prefixLen,
				}}}},
			}},
			{Key: "members", Value: bson.D{{Key: "$push", Value: bson.D{
				{Key: "id", Value: "$_id"},
				{Key: "verified", Value: "$verified"},
				{Key: "sourceLink", Value: "$sourceLink"},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$addFields", Value: bson.D{{Key: "firstID", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$members.id", 0}}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "firstID", Value: 1}}}},
	}
}
