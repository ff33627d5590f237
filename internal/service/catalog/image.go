package catalog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// UploadPrefix is the public path under which uploaded files are served.
const UploadPrefix = "/uploads"

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// SaveImage stores an uploaded dish photo under the upload directory and
// points the dish at it. The previous file is removed on success.
func (s *Service) SaveImage(ctx context.Context, dishID int64, filename string, body io.Reader) (*entity.Dish, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return nil, errorbank.ValidationFailed("unsupported image type",
			errorbank.WithDetail("image", "must be a .jpg, .jpeg, .png or .webp file"))
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.SaveImage", trace.WithAttributes(attribute.Int64("dish.id", dishID)))
	defer span.End()

	d, err := s.repo.GetDish(ctx, dishID)
	if err != nil {
		return nil, s.fail(span, notFound(err, "dish"), "failed to load dish")
	}

	dir := filepath.Join(s.uploadDir, "dishes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, s.fail(span, err, "failed to prepare upload directory")
	}
	name := uuid.NewString() + ext
	path := filepath.Join(dir, name)
	if err := writeFile(path, body); err != nil {
		return nil, s.fail(span, err, "failed to store image")
	}

	previous := d.ImageURL
	d.ImageURL = UploadPrefix + "/dishes/" + name
	d.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, d, "updated_at", "image_url"); err != nil {
		_ = os.Remove(path)
		return nil, s.fail(span, err, "failed to update dish image")
	}
	s.removeUpload(previous)
	s.invalidateMenu(ctx)
	return d, nil
}

func writeFile(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// removeUpload deletes a previously stored file; external URLs are left alone.
func (s *Service) removeUpload(url string) {
	rel, ok := strings.CutPrefix(url, UploadPrefix+"/")
	if !ok || strings.Contains(rel, "..") {
		return
	}
	if err := os.Remove(filepath.Join(s.uploadDir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove old upload", zap.String("path", rel), zap.Error(err))
	}
}
