package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

// BlobStore persists opaque objects under slash-separated keys.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// StorageExecutor archives the submission payload as a JSON document.
type StorageExecutor struct {
	store BlobStore
}

func NewStorageExecutor(store BlobStore) *StorageExecutor {
	return &StorageExecutor{store: store}
}

func (e *StorageExecutor) Execute(ctx context.Context, a model.Action, p Payload) error {
	if e.store == nil {
		return errors.New("storage backend is not configured")
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var prefix string
	if a.Storage != nil {
		prefix = a.Storage.Prefix
	}
	if err := e.store.Put(ctx, ObjectKey(prefix, p), data, "application/json"); err != nil {
		return fmt.Errorf("store submission: %w", err)
	}
	return nil
}

// ObjectKey is <prefix><form>/<yyyy>/<mm>/<submission>.json.
func ObjectKey(prefix string, p Payload) string {
	form := p.FormSlug
	if form == "" {
		form = p.FormID
	}
	t := p.SubmittedAt.UTC()
	return path.Join(prefix, form, t.Format("2006"), t.Format("01"), p.SubmissionID+".json")
}

// DirStore keeps objects as files below Root.
type DirStore struct {
	Root string
}

func (s DirStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := filepath.Join(s.Root, filepath.FromSlash(path.Clean("/"+key)))
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(name), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}
