// Package documents stores upload metadata and streams file bytes to object
// storage.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brickvault/platform/internal/app/domain/document"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// MaxUploadBytes caps a single upload.
const MaxUploadBytes = 32 << 20

// ObjectStore is the blob backend. Satisfied by *MinioStore; a nil store
// disables uploads, metadata-only mode for tests.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (*url.URL, error)
	Remove(ctx context.Context, key string) error
}

// Service manages documents.
type Service struct {
	store   storage.DocumentStore
	objects ObjectStore
	log     *logger.Logger
}

// New constructs a document service.
func New(store storage.DocumentStore, objects ObjectStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("documents")
	}
	return &Service{store: store, objects: objects, log: log}
}

// Upload streams a file into object storage and records its metadata. The
// SHA-256 digest is computed while streaming.
func (s *Service) Upload(ctx context.Context, ownerUserID, entityID string, kind document.Kind, fileName, contentType string, r io.Reader, size int64) (document.Document, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	fileName = strings.TrimSpace(fileName)

	if s.objects == nil {
		return document.Document{}, fmt.Errorf("object storage not configured")
	}
	if ownerUserID == "" {
		return document.Document{}, fmt.Errorf("owner is required")
	}
	if fileName == "" {
		return document.Document{}, fmt.Errorf("file name is required")
	}
	if size <= 0 || size > MaxUploadBytes {
		return document.Document{}, fmt.Errorf("file size must be between 1 byte and %d bytes", MaxUploadBytes)
	}
	switch kind {
	case document.KindKYC, document.KindPropertyImage, document.KindContract, document.KindOther:
	default:
		return document.Document{}, fmt.Errorf("unknown document kind %q", kind)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := objectKey(kind, fileName)
	digest := sha256.New()
	if err := s.objects.Put(ctx, key, io.TeeReader(io.LimitReader(r, size), digest), size, contentType); err != nil {
		return document.Document{}, fmt.Errorf("store object: %w", err)
	}

	created, err := s.store.CreateDocument(ctx, document.Document{
		OwnerUserID: ownerUserID,
		EntityID:    strings.TrimSpace(entityID),
		Kind:        kind,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   size,
		ObjectKey:   key,
		SHA256:      hex.EncodeToString(digest.Sum(nil)),
	})
	if err != nil {
		// Metadata write failed after the object landed; remove the orphan.
		if rmErr := s.objects.Remove(ctx, key); rmErr != nil {
			s.log.WithError(rmErr).WithField("object_key", key).Warn("orphan object cleanup failed")
		}
		return document.Document{}, err
	}

	s.log.WithField("document_id", created.ID).
		WithField("kind", string(kind)).
		WithField("size_bytes", size).
		Info("document uploaded")
	return created, nil
}

// DownloadURL returns a presigned URL for a document's bytes.
func (s *Service) DownloadURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	if s.objects == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	u, err := s.objects.PresignGet(ctx, doc.ObjectKey, expiry)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

// Delete removes a document's object and metadata.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if s.objects != nil {
		if err := s.objects.Remove(ctx, doc.ObjectKey); err != nil {
			return fmt.Errorf("remove object: %w", err)
		}
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.log.WithField("document_id", id).Info("document deleted")
	return nil
}

// Get returns document metadata.
func (s *Service) Get(ctx context.Context, id string) (document.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// ListByOwner returns a user's documents; empty ownerUserID lists all.
func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]document.Document, error) {
	return s.store.ListDocuments(ctx, ownerUserID)
}

// ListByEntity returns the documents attached to an entity.
func (s *Service) ListByEntity(ctx context.Context, entityID string) ([]document.Document, error) {
	return s.store.ListDocumentsByEntity(ctx, entityID)
}

// objectKey namespaces objects by kind and keeps the original extension for
// content-type sniffing in browsers.
func objectKey(kind document.Kind, fileName string) string {
	ext := ""
	if i := strings.LastIndex(fileName, "."); i >= 0 && i < len(fileName)-1 {
		ext = strings.ToLower(fileName[i:])
	}
	return fmt.Sprintf("%s/%s%s", kind, uuid.NewString(), ext)
}
