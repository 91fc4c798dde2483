package compositor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dunamismax/avatarframe/internal/storage"
)

var ErrObjectStoreUnavailable = errors.New("object storage is not configured")

type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, location string, data []byte, format string) error
}

type objectStore interface {
	ReadObject(ctx context.Context, ref storage.ObjectRef) ([]byte, error)
	WriteObject(ctx context.Context, ref storage.ObjectRef, data []byte, contentType string) error
	EnsureBucket(ctx context.Context, bucket string) error
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if strings.TrimSpace(location) == "" {
		return nil, errors.New("input path is required")
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", location, err)
	}
	return data, nil
}

type LocalFileEmitter struct{}

func (LocalFileEmitter) Emit(ctx context.Context, location string, data []byte, _ string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if strings.TrimSpace(location) == "" {
		return errors.New("output path is required")
	}
	if err := os.WriteFile(location, data, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

type ObjectStoreFetcher struct {
	Storage objectStore
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if f.Storage == nil {
		return nil, ErrObjectStoreUnavailable
	}
	ref, err := storage.ParseObjectURI(location)
	if err != nil {
		return nil, err
	}
	return f.Storage.ReadObject(ctx, ref)
}

type ObjectStoreEmitter struct {
	Storage objectStore
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, location string, data []byte, format string) error {
	if e.Storage == nil {
		return ErrObjectStoreUnavailable
	}
	ref, err := storage.ParseObjectURI(location)
	if err != nil {
		return err
	}
	if err := e.Storage.EnsureBucket(ctx, ref.Bucket); err != nil {
		return err
	}
	return e.Storage.WriteObject(ctx, ref, data, ContentTypeForFormat(format))
}

// LocationFetcher reads s3:// URIs from object storage and everything else
// from the local filesystem.
type LocationFetcher struct {
	Local  Fetcher
	Object Fetcher
}

func (f LocationFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if storage.IsObjectURI(location) {
		if f.Object == nil {
			return nil, fmt.Errorf("%w: %s", ErrObjectStoreUnavailable, location)
		}
		return f.Object.Fetch(ctx, location)
	}
	return f.Local.Fetch(ctx, location)
}

// LocationEmitter is the write-side counterpart of LocationFetcher.
type LocationEmitter struct {
	Local  Emitter
	Object Emitter
}

func (e LocationEmitter) Emit(ctx context.Context, location string, data []byte, format string) error {
	if storage.IsObjectURI(location) {
		if e.Object == nil {
			return fmt.Errorf("%w: %s", ErrObjectStoreUnavailable, location)
		}
		return e.Object.Emit(ctx, location, data, format)
	}
	return e.Local.Emit(ctx, location, data, format)
}
