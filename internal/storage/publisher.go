package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/logmill/logmill/internal/errors"
	"github.com/logmill/logmill/internal/logging"
)

// Publisher copies a finished run's output directory into object storage
// under a run-scoped prefix. Publication happens after all sinks have
// flushed, so a listed run prefix always holds a complete result set.
type Publisher struct {
	store ObjectStorage
}

// NewPublisher creates a publisher over the given storage.
func NewPublisher(store ObjectStorage) *Publisher {
	return &Publisher{store: store}
}

// Publish uploads every file under dir to "runs/<runID>/..." mirroring
// the directory layout. Any objects already under the run prefix are
// removed first, so republishing a run ID never leaves stale artifacts
// beside the fresh set. Returns the uploaded object paths.
func (p *Publisher) Publish(ctx context.Context, runID, dir string) ([]string, error) {
	log := logging.Component("publisher")

	prefix := "runs/" + runID + "/"
	stale, err := p.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeUploadFailed,
			"listing run prefix "+prefix, err)
	}
	for _, obj := range stale {
		if err := p.store.Delete(ctx, obj); err != nil {
			return nil, errors.NewStorageError(errors.CodeUploadFailed,
				"clearing stale object "+obj, err)
		}
	}

	var uploaded []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		objectPath := prefix + filepath.ToSlash(rel)

		if err := p.store.Upload(ctx, path, objectPath); err != nil {
			return err
		}
		uploaded = append(uploaded, objectPath)
		return nil
	})
	if err != nil {
		return uploaded, errors.NewStorageError(errors.CodeUploadFailed,
			"publishing run "+runID, err)
	}

	log.Info("run published", "run_id", runID, "objects", len(uploaded))
	return uploaded, nil
}
