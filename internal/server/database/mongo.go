package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// userDoc and fileDoc mirror the collection layout of the original
// files_manager database so an existing dataset keeps working.
type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type fileDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"userId"`
	Name      string    `bson:"name"`
	Type      string    `bson:"type"`
	IsPublic  bool      `bson:"isPublic"`
	ParentID  string    `bson:"parentId"`
	LocalPath string    `bson:"localPath,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
	Seq       int64     `bson:"seq"`
}

// MongoStore is the document-oriented metadata store backed by MongoDB.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	files  *mongo.Collection
	seq    atomic.Int64
}

// NewMongoStore connects to MongoDB and prepares the users and files
// collections, including the unique email index.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		users:  db.Collection("users"),
		files:  db.Collection("files"),
	}
	// Seeding from the clock keeps seq values increasing across restarts;
	// the counter grows far slower than nanoseconds pass.
	s.seq.Store(time.Now().UnixNano())

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create email index: %w", err)
	}

	_, err = s.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "parentId", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create listing index: %w", err)
	}

	slog.Info("connected to mongo metadata store", "database", database)
	return s, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *User) error {
	_, err := s.users.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *MongoStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) UserByID(ctx context.Context, id string) (*User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &User{
		ID:           doc.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *MongoStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// nextSeq hands out strictly increasing listing positions, so concurrent
// inserts can never tie or invert.
func (s *MongoStore) nextSeq() int64 {
	return s.seq.Add(1)
}

func (s *MongoStore) InsertFile(ctx context.Context, file *File) error {
	_, err := s.files.InsertOne(ctx, fileDoc{
		ID:        file.ID,
		OwnerID:   file.OwnerID,
		Name:      file.Name,
		Type:      string(file.Type),
		IsPublic:  file.IsPublic,
		ParentID:  string(file.ParentID),
		LocalPath: file.LocalPath,
		CreatedAt: file.CreatedAt,
		Seq:       s.nextSeq(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (s *MongoStore) FileByID(ctx context.Context, id string) (*File, error) {
	return s.findFile(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FileByIDAndOwner(ctx context.Context, id, ownerID string) (*File, error) {
	return s.findFile(ctx, bson.M{"_id": id, "userId": ownerID})
}

func (s *MongoStore) findFile(ctx context.Context, filter bson.M) (*File, error) {
	var doc fileDoc
	err := s.files.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return doc.toFile(), nil
}

func (doc *fileDoc) toFile() *File {
	return &File{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		Name:      doc.Name,
		Type:      FileType(doc.Type),
		IsPublic:  doc.IsPublic,
		ParentID:  ParentID(doc.ParentID),
		LocalPath: doc.LocalPath,
		CreatedAt: doc.CreatedAt,
	}
}

func (s *MongoStore) ListFiles(ctx context.Context, ownerID string, parent ParentID, skip, limit int) ([]*File, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := s.files.Find(ctx, bson.M{"userId": ownerID, "parentId": string(parent)}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer cursor.Close(ctx)

	files := make([]*File, 0, limit)
	for cursor.Next(ctx) {
		var doc fileDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode file: %w", err)
		}
		files = append(files, doc.toFile())
	}
	return files, cursor.Err()
}

func (s *MongoStore) SetFilePublic(ctx context.Context, id, ownerID string, public bool) (*File, error) {
	var doc fileDoc
	err := s.files.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "userId": ownerID},
		bson.M{"$set": bson.M{"isPublic": public}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to update file: %w", err)
	}
	return doc.toFile(), nil
}

func (s *MongoStore) CountFiles(ctx context.Context) (int64, error) {
	n, err := s.files.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

// Ping verifies the mongo connection is alive.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the mongo client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
