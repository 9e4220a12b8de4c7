package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go-marketplace/internal/model"
	"go-marketplace/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity is the authenticated caller as established by the auth middleware.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == model.RoleAdmin
}

// Notifier pushes realtime payloads to connected users.
type Notifier interface {
	SendToUsers(payload interface{}, userIDs ...string)
}

// Upload is a multipart file already written to a scratch path.
type Upload struct {
	Path        string
	Filename    string
	ContentType string
}

// storeUpload moves a scratch file into object storage under prefix/ and
// returns its URL. The scratch copy is removed whatever the outcome.
func storeUpload(ctx context.Context, store storage.Storage, log *zap.Logger, prefix string, up *Upload) (string, error) {
	defer func() {
		if err := os.Remove(up.Path); err != nil && !os.IsNotExist(err) {
			log.Warn("scratch upload cleanup failed", zap.String("path", up.Path), zap.Error(err))
		}
	}()

	f, err := os.Open(up.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(up.Filename))
	key := prefix + "/" + uuid.NewString() + ext
	url, err := store.Upload(ctx, key, f, up.ContentType)
	if err != nil {
		return "", upstream("storage upload", err)
	}
	return url, nil
}
