package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stash/internal/server/database"
	"stash/internal/server/storage"
)

// PageSize is the fixed window of the file listing endpoint.
const PageSize = 20

// ThumbnailSizes are the derived widths the pipeline generates and the
// content endpoint accepts.
var ThumbnailSizes = []int{500, 250, 100}

// ThumbnailQueue receives a job for every successfully uploaded image.
// Enqueue must not block: a full queue is reported as an error, never as a
// stalled upload.
type ThumbnailQueue interface {
	Enqueue(fileID, userID string) error
}

// CreateFileInput carries the raw request fields of a create operation.
// Data holds the base64-encoded content for file and image types.
type CreateFileInput struct {
	Name     string
	Type     string
	ParentID string
	IsPublic bool
	Data     string
}

// FileService enforces the tree invariants and ownership rules around
// file and folder records.
type FileService struct {
	db    database.FileStore
	blobs storage.Store
	queue ThumbnailQueue
}

// NewFileService creates a new file service. queue may be nil when no
// thumbnail pipeline is attached (dev runs without workers).
func NewFileService(db database.FileStore, blobs storage.Store, queue ThumbnailQueue) *FileService {
	return &FileService{
		db:    db,
		blobs: blobs,
		queue: queue,
	}
}

// Create validates and inserts a new folder, file or image owned by
// ownerID. For file and image types the decoded payload is written to the
// blob store first; the metadata record is only inserted after the blob
// write succeeded, so a failed write never leaves a half-created record.
// Image uploads enqueue a thumbnail job once the record is committed.
func (s *FileService) Create(ctx context.Context, ownerID string, in CreateFileInput) (*database.File, error) {
	if in.Name == "" {
		return nil, ErrMissingName
	}

	fileType := database.FileType(in.Type)
	if !fileType.Valid() {
		return nil, ErrMissingType
	}

	if fileType.HasContent() && in.Data == "" {
		return nil, ErrMissingData
	}

	parent := database.ParseParentID(in.ParentID)
	if !parent.IsRoot() {
		parentFile, err := s.db.FileByID(ctx, string(parent))
		if err != nil {
			if errors.Is(err, database.ErrFileNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
		if parentFile.Type != database.TypeFolder {
			return nil, ErrParentNotFolder
		}
	}

	var localPath string
	if fileType.HasContent() {
		content, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return nil, ErrInvalidData
		}

		localPath, err = s.blobs.Write(content)
		if err != nil {
			return nil, fmt.Errorf("failed to store content: %w", err)
		}
	}

	file := &database.File{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      in.Name,
		Type:      fileType,
		IsPublic:  in.IsPublic,
		ParentID:  parent,
		LocalPath: localPath,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.InsertFile(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	// The record is committed, so the pipeline's existence check will find
	// it. A full queue loses the thumbnails, not the upload.
	if fileType == database.TypeImage && s.queue != nil {
		if err := s.queue.Enqueue(file.ID, ownerID); err != nil {
			slog.Error("failed to enqueue thumbnail job", "file_id", file.ID, "error", err)
		}
	}

	slog.Info("file created",
		"id", file.ID,
		"owner_id", ownerID,
		"name", file.Name,
		"type", file.Type,
		"parent_id", file.ParentID.String(),
	)

	return file, nil
}

// Get returns a record only to its owner, regardless of visibility.
// Records owned by someone else report ErrNotFound rather than
// ErrForbidden so their existence is not leaked.
func (s *FileService) Get(ctx context.Context, ownerID, fileID string) (*database.File, error) {
	file, err := s.db.FileByIDAndOwner(ctx, fileID, ownerID)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

// List returns the caller's records under parentID, windowed to PageSize
// in insertion order. Pages beyond the end yield an empty list.
func (s *FileService) List(ctx context.Context, ownerID, parentID string, page int) ([]*database.File, error) {
	if page < 0 {
		page = 0
	}
	return s.db.ListFiles(ctx, ownerID, database.ParseParentID(parentID), page*PageSize, PageSize)
}

// SetVisibility publishes or unpublishes an owned record and returns the
// updated version. Idempotent: republishing a public file is not an error.
func (s *FileService) SetVisibility(ctx context.Context, ownerID, fileID string, public bool) (*database.File, error) {
	file, err := s.db.SetFilePublic(ctx, fileID, ownerID, public)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	slog.Info("file visibility changed", "id", fileID, "is_public", public)
	return file, nil
}

// Content returns the stored bytes of a file along with its name.
// callerID may be empty for anonymous requests; private files are only
// served to their owner. size selects a derived thumbnail width and must
// be 0 (the original) or one of ThumbnailSizes. A requested thumbnail
// that has not been generated yet reports ErrNotFound, never a silent
// fallback to the original bytes.
func (s *FileService) Content(ctx context.Context, fileID, callerID string, size int) ([]byte, string, error) {
	if size != 0 && !validThumbnailSize(size) {
		return nil, "", ErrInvalidSize
	}

	file, err := s.db.FileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	if file.Type == database.TypeFolder {
		return nil, "", ErrFolderContent
	}

	if !file.IsPublic && callerID != file.OwnerID {
		return nil, "", ErrForbidden
	}

	path := file.LocalPath
	if size != 0 {
		path = fmt.Sprintf("%s_%d", path, size)
	}

	data, err := s.blobs.Read(path)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to read content: %w", err)
	}

	return data, file.Name, nil
}

func validThumbnailSize(size int) bool {
	for _, s := range ThumbnailSizes {
		if size == s {
			return true
		}
	}
	return false
}
