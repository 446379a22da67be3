package app

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"bookery/pkg/domain"
	"bookery/pkg/storage"
)

// SaveCover stores uploaded cover bytes. Covers are deduplicated by content:
// uploading bytes already present returns the existing cover without writing
// a new file, regardless of the uploaded file name.
func (a *App) SaveCover(fileName string, data []byte) (domain.Cover, error) {
	if len(data) == 0 {
		return domain.Cover{}, fmt.Errorf("%w: cover file is empty", domain.ErrValidation)
	}
	name := storage.SafeFilename(fileName)
	if name == "" {
		name = "cover"
	}
	sum := md5.Sum(data)
	cover, _, err := a.store.CreateCover(domain.Cover{
		FileName:    name,
		MimeType:    coverMimeType(name),
		ContentHash: hex.EncodeToString(sum[:]),
	}, func(c domain.Cover) error {
		return a.covers.Save(c.FileName, data)
	})
	if err != nil {
		return domain.Cover{}, err
	}
	return cover, nil
}

// ServeCover opens a stored cover file for streaming to the client.
func (a *App) ServeCover(id uint) (domain.Cover, io.ReadCloser, error) {
	cover, ok, err := a.store.GetCover(id)
	if err != nil {
		return domain.Cover{}, nil, err
	}
	if !ok {
		return domain.Cover{}, nil, fmt.Errorf("%w: cover %d", domain.ErrNotFound, id)
	}
	r, err := a.covers.Open(cover.FileName)
	if err != nil {
		return domain.Cover{}, nil, fmt.Errorf("%w: open cover %d: %v", domain.ErrStorage, id, err)
	}
	return cover, r, nil
}

func coverMimeType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}
