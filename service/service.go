package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"
)

var ErrNonRetryable = errors.New("non-retryable error")

var ErrObjectNotFound = errors.New("object not found")

// Storage is the object store the services archive to and download from.
type Storage interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
	Get(ctx context.Context, objectName string) ([]byte, error)
}

type minioStorage struct {
	client *minio.Client
	bucket string
}

func NewMinIOStorage(client *minio.Client, bucket string) Storage {
	return &minioStorage{
		client: client,
		bucket: bucket,
	}
}

func (s *minioStorage) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *minioStorage) Get(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinIOError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinIOError(err)
	}
	return data, nil
}

func translateMinIOError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.Join(ErrObjectNotFound, err)
	}
	return err
}
