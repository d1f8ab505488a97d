package restapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/errors"
)

// StartUploadRequest asks the backend for a short-lived upload target
type StartUploadRequest struct {
	EncounterID uuid.UUID `json:"consultation_id"`
	RecordingID uuid.UUID `json:"recording_id"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
}

// StartUploadResponse carries the presigned upload target
type StartUploadResponse struct {
	PresignedUploadURL string `json:"presigned_upload_url"`
}

// StartRecordingUpload requests a presigned upload URL for a recording.
func (c *Client) StartRecordingUpload(ctx context.Context, req StartUploadRequest) (*StartUploadResponse, error) {
	var resp StartUploadResponse
	if err := c.do(ctx, http.MethodPost, "/record/start", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PutBlob transfers the captured blob directly to the presigned target.
// The target URL already carries its own authorization; no bearer token
// is attached.
func (c *Client) PutBlob(ctx context.Context, url string, blob io.Reader, size int64, mimeType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, blob)
	if err != nil {
		return errors.ErrInternal(err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.ErrTransient("PUT presigned target", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.ErrTransient("PUT presigned target", fmt.Errorf("storage returned status %d", resp.StatusCode))
	}
	return nil
}

// CompleteRecording notifies the backend that the blob transfer finished,
// which starts server-side processing.
func (c *Client) CompleteRecording(ctx context.Context, recordingID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/record/complete/"+recordingID.String(), nil, nil)
}
