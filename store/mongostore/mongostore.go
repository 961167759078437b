// Package mongostore implements contentcache.Store and contentcache.WriteStore on a
// MongoDB collection shared with the Node services.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unkn0wn-root/contentcache"
)

const (
	DefaultDatabase   = "content"
	DefaultCollection = "contents"
)

var (
	_ contentcache.Store      = (*Store)(nil)
	_ contentcache.WriteStore = (*Store)(nil)
)

type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration // connect + ping; 0 = 10s
}

type Store struct {
	coll   *mongo.Collection
	client *mongo.Client // set only when Connect owns the client
	now    func() time.Time
}

// New wraps an existing collection. The caller owns the client.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll, now: time.Now}
}

// Connect dials the server, pings it, and returns a Store that disconnects on Close.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongostore: empty URI")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	db := cfg.Database
	if db == "" {
		db = DefaultDatabase
	}
	coll := cfg.Collection
	if coll == "" {
		coll = DefaultCollection
	}
	s := New(client.Database(db).Collection(coll))
	s.client = client
	return s, nil
}

// EnsureIndexes creates the createdAt index every list and today query sorts on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	return err
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) FindByID(ctx context.Context, id string) (contentcache.ContentItem, bool, error) {
	filter, err := byIDFilter(id)
	if err != nil {
		return contentcache.ContentItem{}, false, err
	}
	var d document
	err = s.coll.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return contentcache.ContentItem{}, false, nil
	}
	if err != nil {
		return contentcache.ContentItem{}, false, err
	}
	return d.item(), true, nil
}

func (s *Store) FindPage(ctx context.Context, skip, limit int) ([]contentcache.ContentItem, error) {
	return s.find(ctx, bson.D{}, pageOptions(skip, limit))
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	return int(n), err
}

func (s *Store) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]contentcache.ContentItem, error) {
	return s.find(ctx, createdBetweenFilter(from, to), options.Find().SetSort(newestFirst))
}

func (s *Store) Create(ctx context.Context, item contentcache.ContentItem) (contentcache.ContentItem, error) {
	d, err := fromItem(item)
	if err != nil {
		return contentcache.ContentItem{}, err
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	now := s.now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if _, err := s.coll.InsertOne(ctx, d); err != nil {
		return contentcache.ContentItem{}, err
	}
	return d.item(), nil
}

func (s *Store) Update(ctx context.Context, item contentcache.ContentItem) (contentcache.ContentItem, bool, error) {
	if item.NativeID == "" {
		item.NativeID = item.ID
	}
	filter, err := byIDFilter(item.NativeID)
	if err != nil {
		return contentcache.ContentItem{}, false, err
	}
	d, err := fromItem(item)
	if err != nil {
		return contentcache.ContentItem{}, false, err
	}
	d.UpdatedAt = s.now().UTC()

	var out document
	err = s.coll.FindOneAndUpdate(ctx, filter, updateDoc(d),
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return contentcache.ContentItem{}, false, nil
	}
	if err != nil {
		return contentcache.ContentItem{}, false, err
	}
	return out.item(), true, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	filter, err := byIDFilter(id)
	if err != nil {
		return false, err
	}
	res, err := s.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) AppendMedia(ctx context.Context, id string, m contentcache.MediaRef) (bool, error) {
	filter, err := byIDFilter(id)
	if err != nil {
		return false, err
	}
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"media": mediaDoc(m)},
		"$set":  bson.M{"updatedAt": s.now().UTC()},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) find(ctx context.Context, filter any, opts *options.FindOptions) ([]contentcache.ContentItem, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]contentcache.ContentItem, len(docs))
	for i := range docs {
		out[i] = docs[i].item()
	}
	return out, nil
}
