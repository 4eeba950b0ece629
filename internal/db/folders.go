package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

// FolderStore remembers the chat folder list between sessions so the folder
// selector is populated before the backend announces it again.
type FolderStore interface {
	SaveChatFolders(ctx context.Context, folders []tdlib.ChatFolder) error
	LoadChatFolders(ctx context.Context) ([]tdlib.ChatFolder, error)
}

type chatFolderDoc struct {
	ID       int32  `bson:"id"`
	Title    string `bson:"title"`
	Position int    `bson:"position"`
}

type MongoFolderStore struct {
	chatFoldersColl *mongo.Collection
	timeout         time.Duration
}

func NewMongoFolderStore(client *mongo.Client, database string) *MongoFolderStore {
	return &MongoFolderStore{
		chatFoldersColl: client.Database(database).Collection("chatFolders"),
		timeout:         defaultTimeout,
	}
}

// SaveChatFolders upserts every folder by id and drops the ones that are no
// longer announced.
func (m *MongoFolderStore) SaveChatFolders(ctx context.Context, folders []tdlib.ChatFolder) error {
	mctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ids := make([]int32, 0, len(folders))
	for i, f := range folders {
		crit := bson.D{{Key: "id", Value: f.ID}}
		update := bson.D{{Key: "$set", Value: chatFolderDoc{ID: f.ID, Title: f.Title, Position: i}}}
		_, err := m.chatFoldersColl.UpdateOne(mctx, crit, update, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to save chat folder %d (%s): %w", f.ID, f.Title, err)
		}
		ids = append(ids, f.ID)
	}

	_, err := m.chatFoldersColl.DeleteMany(mctx, bson.D{{Key: "id", Value: bson.M{"$nin": ids}}})
	if err != nil {
		return fmt.Errorf("failed to delete stale chat folders: %w", err)
	}

	return nil
}

func (m *MongoFolderStore) LoadChatFolders(ctx context.Context) ([]tdlib.ChatFolder, error) {
	mctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	cur, err := m.chatFoldersColl.Find(mctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat folders: %w", err)
	}
	var docs []chatFolderDoc
	if err = cur.All(mctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode chat folders: %w", err)
	}

	folders := make([]tdlib.ChatFolder, 0, len(docs))
	for _, d := range docs {
		folders = append(folders, tdlib.ChatFolder{ID: d.ID, Title: d.Title})
	}

	return folders, nil
}

// MemoryFolderStore is used when no database is configured.
type MemoryFolderStore struct {
	mu      sync.Mutex
	folders []tdlib.ChatFolder
}

func (m *MemoryFolderStore) SaveChatFolders(_ context.Context, folders []tdlib.ChatFolder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders = append([]tdlib.ChatFolder(nil), folders...)

	return nil
}

func (m *MemoryFolderStore) LoadChatFolders(_ context.Context) ([]tdlib.ChatFolder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]tdlib.ChatFolder(nil), m.folders...), nil
}
