package attachment

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/adapter/restapi"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

// Store manages an encounter's attachment list. The list is append-only
// per upload; a delete re-reads the remote list instead of splicing the
// local copy, so concurrent uploads from other devices are never lost.
type Store struct {
	api    *restapi.Client
	logger *zap.Logger

	mu          sync.Mutex
	attachments map[uuid.UUID][]entities.Attachment
}

// NewStore creates an attachment store.
func NewStore(api *restapi.Client, logger *zap.Logger) *Store {
	return &Store{
		api:         api,
		logger:      logger,
		attachments: make(map[uuid.UUID][]entities.Attachment),
	}
}

// Refresh replaces the local list with the remote one.
func (s *Store) Refresh(ctx context.Context, encounterID uuid.UUID) ([]entities.Attachment, error) {
	attachments, err := s.api.ListAttachments(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.attachments[encounterID] = attachments
	s.mu.Unlock()
	return s.List(encounterID), nil
}

// List returns the cached attachment list for an encounter.
func (s *Store) List(encounterID uuid.UUID) []entities.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached := s.attachments[encounterID]
	out := make([]entities.Attachment, len(cached))
	copy(out, cached)
	return out
}

// Upload sends one file and appends the server's record of it to the
// local list. A failed upload changes nothing locally.
func (s *Store) Upload(ctx context.Context, req restapi.UploadAttachmentRequest) (*entities.Attachment, error) {
	if req.FileName == "" {
		return nil, errors.ErrValidation("Attachment file name is required")
	}
	if req.Content == nil {
		return nil, errors.ErrValidation("Attachment content is required")
	}

	attachment, err := s.api.UploadAttachment(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.attachments[req.EncounterID] = append(s.attachments[req.EncounterID], *attachment)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("attachment uploaded",
			zap.String("encounter_id", req.EncounterID.String()),
			zap.String("file_name", attachment.FileName),
		)
	}
	return attachment, nil
}

// Delete removes the attachment remotely, then refreshes from the
// server. If the refresh fails the stale local list is kept and the
// error surfaces; the next refresh reconciles.
func (s *Store) Delete(ctx context.Context, encounterID, attachmentID uuid.UUID) error {
	if err := s.api.DeleteAttachment(ctx, attachmentID); err != nil {
		return err
	}
	if _, err := s.Refresh(ctx, encounterID); err != nil {
		if s.logger != nil {
			s.logger.Warn("attachment refresh after delete failed",
				zap.String("encounter_id", encounterID.String()),
				zap.Error(err),
			)
		}
		return err
	}
	return nil
}

// Download streams an attachment's content. The caller closes the
// returned reader.
func (s *Store) Download(ctx context.Context, attachment entities.Attachment) (io.ReadCloser, error) {
	return s.api.DownloadAttachment(ctx, attachment)
}
