package handler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-marketplace/internal/middleware"
	"go-marketplace/internal/service"
	"go-marketplace/pkg/response"
	"go-marketplace/pkg/storage"
	"go-marketplace/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxImageSize = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// identity reads the caller set by middleware.RequireAuth.
func identity(c *fiber.Ctx) service.Identity {
	id, _ := c.Locals(middleware.LocalUserID).(string)
	email, _ := c.Locals(middleware.LocalUserEmail).(string)
	role, _ := c.Locals(middleware.LocalUserRole).(string)
	return service.Identity{UserID: id, Email: email, Role: role}
}

func invalidBody(c *fiber.Ctx) error {
	return response.Error(c, fiber.StatusBadRequest, "Invalid request body", nil)
}

// handleError maps service errors onto HTTP status codes. Only 5xx
// outcomes are logged.
func handleError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		return response.Error(c, fiber.StatusBadRequest, "Validation failed", vErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		return response.Error(c, fiber.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrUnauthorized):
		return response.Error(c, fiber.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, service.ErrForbidden):
		return response.Error(c, fiber.StatusForbidden, err.Error(), nil)
	case errors.Is(err, service.ErrConflict):
		return response.Error(c, fiber.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrBusinessRule):
		return response.Error(c, fiber.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrUpstream):
		log.Error("upstream failure", zap.String("path", c.Path()), zap.Error(err))
		return response.Error(c, fiber.StatusInternalServerError, err.Error(), nil)
	default:
		log.Error("request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return response.Error(c, fiber.StatusInternalServerError, "Internal server error", nil)
	}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

func imageError(field, tag, value string) error {
	return &service.ValidationError{Fields: []*validator.ErrorResponse{{FailedField: field, Tag: tag, Value: value}}}
}

// saveUpload writes the image in form field to a scratch file. It returns
// nil when the request is not multipart or carries no such file.
func saveUpload(c *fiber.Ctx, field string) (*service.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, imageError(field, "multipart", err.Error())
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}

	fh := files[0]
	if fh.Size > maxImageSize {
		return nil, imageError(field, "max_size", fmt.Sprintf("%d", maxImageSize))
	}
	contentType := fh.Header.Get(fiber.HeaderContentType)
	if contentType == "" || contentType == fiber.MIMEOctetStream {
		contentType = storage.ContentType(fh.Filename)
	}
	if !allowedImageTypes[contentType] {
		return nil, imageError(field, "image", contentType)
	}

	path := filepath.Join(os.TempDir(), "upload-"+uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveFile(fh, path); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &service.Upload{Path: path, Filename: fh.Filename, ContentType: contentType}, nil
}

// discardUpload removes a scratch file once the request is done with it. The
// service may already have moved it into storage.
func discardUpload(log *zap.Logger, up *service.Upload) {
	if up == nil {
		return
	}
	if err := os.Remove(up.Path); err != nil && !os.IsNotExist(err) {
		log.Warn("scratch upload cleanup failed", zap.String("path", up.Path), zap.Error(err))
	}
}
