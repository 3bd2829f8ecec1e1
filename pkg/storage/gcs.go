package storage

import (
	"context"
	"errors"
	"fmt"
	"path"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
)

// StorageGCS is a Google Cloud Storage-based blob store.
// All names are relative to 'prefix' inside the bucket.
type StorageGCS struct {
	bucketName string
	prefix     string
	bucket     *gcs.BucketHandle
	log        logs.Log
}

func NewStorageGCS(log logs.Log, bucketName, prefix string) (*StorageGCS, error) {
	ctx := context.Background()
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	bucket := client.Bucket(bucketName)
	return &StorageGCS{
		bucketName: bucketName,
		prefix:     prefix,
		bucket:     bucket,
		log:        log,
	}, nil
}

func (s *StorageGCS) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *StorageGCS) ReadFile(name string) (*File, error) {
	ctx := context.Background()
	s.log.Debugf("Reading gs://%v/%v", s.bucketName, s.objectName(name))
	r, err := s.bucket.Object(s.objectName(name)).NewReader(ctx)
	if err != nil {
		return nil, wrapGCSErr(name, err)
	}
	return &File{
		Reader:     r,
		ModifiedAt: r.Attrs.LastModified,
		Size:       r.Attrs.Size,
	}, nil
}

func (s *StorageGCS) Stat(name string) error {
	ctx := context.Background()
	_, err := s.bucket.Object(s.objectName(name)).Attrs(ctx)
	return wrapGCSErr(name, err)
}

func (s *StorageGCS) Filename(name string) (string, error) {
	return "", ErrNotAFilesystem
}

func wrapGCSErr(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, name)
	}
	return err
}
