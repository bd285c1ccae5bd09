package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Collection names.
const (
	DocumentsCollection = "documents"
	HistoryCollection   = "chat_history"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "rag_db"

const connectTimeout = 10 * time.Second

// Store is a MongoDB database shared by the text store and the history store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to uri, verifies the connection and ensures indexes.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: mongodb uri", domain.ErrMissingCredential)
	}
	if database == "" {
		database = DefaultDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting: %w", domain.ErrTextStoreUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %w", domain.ErrTextStoreUnavailable, err)
	}

	s := newStore(client, client.Database(database))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// newStore wraps an existing database handle.
func newStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{client: client, db: db}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(DocumentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "hash", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "hash", Value: bson.D{{Key: "$type", Value: "string"}}}}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating hash index: %w", domain.ErrTextStoreUnavailable, err)
	}

	_, err = s.db.Collection(HistoryCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("%w: creating history index: %w", domain.ErrHistoryUnavailable, err)
	}
	return nil
}

// Close disconnects the client. It is safe to call more than once.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(context.Background())
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return nil
	}
	return err
}

// TextStore returns the chunk text store backed by this database.
func (s *Store) TextStore() driven.TextStore {
	return &textStore{store: s, coll: s.db.Collection(DocumentsCollection)}
}

// HistoryStore returns the conversation history store backed by this database.
func (s *Store) HistoryStore() driven.HistoryStore {
	return &historyStore{store: s, coll: s.db.Collection(HistoryCollection)}
}

// ==================== Text Store ====================

// chunkDoc is the documents collection layout.
type chunkDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	Source    string             `bson:"source,omitempty"`
	Hash      string             `bson:"hash,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

// textStore implements driven.TextStore.
type textStore struct {
	store *Store
	coll  *mongo.Collection
}

var _ driven.TextStore = (*textStore)(nil)

// Insert stores a chunk and returns its ObjectID in hex. A chunk whose hash
// is already stored keeps its original id.
func (s *textStore) Insert(ctx context.Context, content string, metadata map[string]string) (string, error) {
	doc := chunkDoc{
		Text:      content,
		Source:    metadata[domain.MetadataSource],
		Hash:      metadata[domain.MetadataHash],
		CreatedAt: time.Now().UTC(),
	}

	if doc.Hash == "" {
		res, err := s.coll.InsertOne(ctx, doc)
		if err != nil {
			return "", fmt.Errorf("%w: inserting chunk: %w", domain.ErrTextStoreUnavailable, err)
		}
		return objectIDHex(res.InsertedID)
	}

	var stored chunkDoc
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "hash", Value: doc.Hash}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "text", Value: doc.Text},
			{Key: "source", Value: doc.Source},
			{Key: "created_at", Value: doc.CreatedAt},
		}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&stored)
	if err != nil {
		return "", fmt.Errorf("%w: upserting chunk: %w", domain.ErrTextStoreUnavailable, err)
	}
	return stored.ID.Hex(), nil
}

// Get returns the content of the chunk with the given id.
func (s *textStore) Get(ctx context.Context, id string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", domain.ErrNotFound
	}

	var doc chunkDoc
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading chunk: %w", domain.ErrTextStoreUnavailable, err)
	}
	return doc.Text, nil
}

// Sources returns the distinct non-empty sources of stored chunks.
func (s *textStore) Sources(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "source", bson.D{{Key: "source", Value: bson.D{{Key: "$gt", Value: ""}}}})
	if err != nil {
		return nil, fmt.Errorf("%w: listing sources: %w", domain.ErrTextStoreUnavailable, err)
	}

	sources := make([]string, 0, len(values))
	for _, v := range values {
		if source, ok := v.(string); ok && source != "" {
			sources = append(sources, source)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// DeleteSource removes the chunks of source whose id is not in keep.
// Ids that are not ObjectIDs cannot match a stored chunk and are ignored.
func (s *textStore) DeleteSource(ctx context.Context, source string, keep []string) error {
	filter := bson.D{{Key: "source", Value: source}}
	if len(keep) > 0 {
		oids := make([]primitive.ObjectID, 0, len(keep))
		for _, id := range keep {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$nin", Value: oids}}})
	}

	if _, err := s.coll.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("%w: deleting chunks of %s: %w", domain.ErrTextStoreUnavailable, source, err)
	}
	return nil
}

// Close disconnects the shared client.
func (s *textStore) Close() error {
	return s.store.Close()
}

// ==================== History Store ====================

// turnDoc is the chat_history collection layout.
type turnDoc struct {
	UserID    string    `bson:"user_id"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Timestamp time.Time `bson:"timestamp"`
}

// historyStore implements driven.HistoryStore.
type historyStore struct {
	store *Store
	coll  *mongo.Collection
}

var _ driven.HistoryStore = (*historyStore)(nil)

// Append records one conversation turn.
func (s *historyStore) Append(ctx context.Context, turn domain.Turn) error {
	if !turn.Role.IsValid() {
		return fmt.Errorf("%w: role %q", domain.ErrInvalidInput, turn.Role)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	_, err := s.coll.InsertOne(ctx, turnDoc{
		UserID:    turn.UserID,
		Role:      string(turn.Role),
		Content:   turn.Content,
		Timestamp: turn.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: appending turn: %w", domain.ErrHistoryUnavailable, err)
	}
	return nil
}

// Recent returns up to limit turns for userID, most recent first.
func (s *historyStore) Recent(ctx context.Context, userID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	cursor, err := s.coll.Find(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: reading turns: %w", domain.ErrHistoryUnavailable, err)
	}

	var docs []turnDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decoding turns: %w", domain.ErrHistoryUnavailable, err)
	}

	turns := make([]domain.Turn, 0, len(docs))
	for _, d := range docs {
		turns = append(turns, domain.Turn{
			UserID:    d.UserID,
			Role:      domain.Role(d.Role),
			Content:   d.Content,
			Timestamp: d.Timestamp,
		})
	}
	return turns, nil
}

// Close disconnects the shared client.
func (s *historyStore) Close() error {
	return s.store.Close()
}

// objectIDHex returns the hex form of an inserted id.
func objectIDHex(id any) (string, error) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex(), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unexpected id type %T", domain.ErrTextStoreUnavailable, id)
	}
}
