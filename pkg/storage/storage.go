package storage

import (
	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/storage/blobstore"
	"github.com/filely/filely/pkg/storage/database"
)

type Services struct {
	Database  database.Database
	BlobStore blobstore.BlobStore
}

func New(c config.FilelyConfig) (*Services, error) {
	rc := &Services{}

	var err error
	if rc.BlobStore, err = blobstore.NewBlobStore(c.BlobStore); err != nil {
		return nil, err
	}

	if rc.Database, err = database.NewConnection(c.Database); err != nil {
		return nil, err
	}

	return rc, nil
}
