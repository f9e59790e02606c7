package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/filely/filely/pkg/util"
	"google.golang.org/api/option"
)

type Storage struct {
	Bucket                string `mapstructure:"bucket"`
	CredentialsJsonString string `mapstructure:"credentials_json"`

	client *storage.Client
}

func (s *Storage) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	wc := s.client.Bucket(s.Bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return err
	}
	return wc.Close()
}

func (s *Storage) Delete(ctx context.Context, keys []string) error {
	bucket := s.client.Bucket(s.Bucket)
	for _, key := range keys {
		err := bucket.Object(key).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return err
		}
	}
	return nil
}

func (s *Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.client.Bucket(s.Bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
}

func NewStorage(c map[string]any) (*Storage, error) {
	q := util.ConfigToStruct[Storage](c)

	client, err := storage.NewClient(context.TODO(), option.WithCredentialsJSON([]byte(q.CredentialsJsonString)))
	if err != nil {
		return nil, err
	}

	q.client = client
	return q, nil
}
