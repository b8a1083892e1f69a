package service

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"vesper/internal/domain"
	"vesper/internal/repository"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"

	"github.com/google/uuid"
)

// sniffLen is how much http.DetectContentType looks at.
const sniffLen = 512

// inlineContentTypes may be rendered by the browser; everything else is
// served as a download.
var inlineContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"image/bmp":       true,
	"application/pdf": true,
}

// AttachmentService turns uploaded files into stable public URLs.
type AttachmentService interface {
	// Store saves data under a fresh object name. The content type is
	// detected from the bytes; whatever the client declared is ignored.
	Store(ctx context.Context, filename string, data io.Reader) (*domain.Attachment, error)
	Open(ctx context.Context, name string) (io.ReadCloser, *repository.BlobInfo, error)
	// Delete removes an attachment nothing refers to.
	Delete(ctx context.Context, attachment *domain.Attachment) error
}

type attachmentService struct {
	blobRepo  repository.BlobRepository
	publicURL string
	log       logger.Logger
}

func NewAttachmentService(blobRepo repository.BlobRepository, publicURL string, log logger.Logger) AttachmentService {
	return &attachmentService{
		blobRepo:  blobRepo,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
	}
}

// SniffContentType detects the media type of data. The returned reader yields
// the full content, including the bytes consumed for detection.
func SniffContentType(data io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(data, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), data), nil
}

// InlineContentType reports whether a stored file of contentType may be
// displayed inline by browsers.
func InlineContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return inlineContentTypes[mediaType]
}

func (s *attachmentService) Store(ctx context.Context, filename string, data io.Reader) (*domain.Attachment, error) {
	original := filepath.Base(strings.TrimSpace(filename))
	if original == "" || original == "." || original == "/" {
		return nil, apperrors.BadRequest("file name is required")
	}

	contentType, content, err := SniffContentType(data)
	if err != nil {
		return nil, apperrors.BadRequest("could not read the uploaded file")
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(original))
	if _, err := s.blobRepo.Put(ctx, name, contentType, content); err != nil {
		return nil, err
	}

	s.log.Debug("Attachment stored", "name", name, "original", original, "content_type", contentType)

	return &domain.Attachment{
		URL:         s.publicURL + "/files/" + name,
		Name:        original,
		Object:      name,
		ContentType: contentType,
	}, nil
}

func (s *attachmentService) Open(ctx context.Context, name string) (io.ReadCloser, *repository.BlobInfo, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, nil, apperrors.ErrNotFound
	}
	return s.blobRepo.Open(ctx, name)
}

func (s *attachmentService) Delete(ctx context.Context, attachment *domain.Attachment) error {
	if attachment == nil || attachment.Object == "" {
		return nil
	}
	if err := s.blobRepo.Delete(ctx, attachment.Object); err != nil {
		s.log.Warn("Failed to delete attachment", "error", err, "name", attachment.Object)
		return err
	}
	return nil
}
