package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stash/internal/server/database"
	"stash/internal/server/service"
	"stash/internal/server/storage"
)

// Pipeline turns uploaded images into derived thumbnails at the fixed
// widths of service.ThumbnailSizes, stored next to the original as
// <path>_<width>. It runs as the queue handler, decoupled from the
// request path.
type Pipeline struct {
	files database.FileStore
	blobs storage.Store
}

// NewPipeline creates a pipeline reading records from files and blobs
// from the blob store.
func NewPipeline(files database.FileStore, blobs storage.Store) *Pipeline {
	return &Pipeline{
		files: files,
		blobs: blobs,
	}
}

// Process handles one job: validate, locate the owned record, generate
// every size. Either all derived assets are written and the job is done,
// or the whole job fails; two out of three is still a failure and the
// job is retried as a unit.
func (p *Pipeline) Process(ctx context.Context, job Job) error {
	if job.FileID == "" {
		return Fatal(errors.New("missing fileId"))
	}
	if job.UserID == "" {
		return Fatal(errors.New("missing userId"))
	}

	file, err := p.files.FileByIDAndOwner(ctx, job.FileID, job.UserID)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			// The record was never created or belongs to someone else;
			// retrying cannot help.
			return Fatal(fmt.Errorf("file %s not found for user %s", job.FileID, job.UserID))
		}
		return fmt.Errorf("failed to look up file: %w", err)
	}

	if file.Type != database.TypeImage {
		return Fatal(fmt.Errorf("file %s is not an image", file.ID))
	}

	original, err := p.blobs.Read(file.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to read original: %w", err)
	}

	for _, width := range service.ThumbnailSizes {
		thumb, err := Resize(original, width)
		if err != nil {
			return fmt.Errorf("failed to generate %dpx thumbnail: %w", width, err)
		}

		path := fmt.Sprintf("%s_%d", file.LocalPath, width)
		if err := p.blobs.WriteAt(path, thumb); err != nil {
			return fmt.Errorf("failed to store %dpx thumbnail: %w", width, err)
		}
	}

	slog.Info("thumbnails generated", "file_id", file.ID, "widths", service.ThumbnailSizes)
	return nil
}
