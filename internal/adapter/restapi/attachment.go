package restapi

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

// UploadAttachmentRequest describes one multipart attachment upload
type UploadAttachmentRequest struct {
	EncounterID uuid.UUID
	PatientID   uuid.UUID
	Category    string
	FileName    string
	MimeType    string
	Content     io.Reader
}

// ListAttachments fetches the attachment list for an encounter.
func (c *Client) ListAttachments(ctx context.Context, encounterID uuid.UUID) ([]entities.Attachment, error) {
	var attachments []entities.Attachment
	if err := c.do(ctx, http.MethodGet, "/attachments/"+encounterID.String(), nil, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// UploadAttachment performs the multipart upload of a single file.
func (c *Client) UploadAttachment(ctx context.Context, req UploadAttachmentRequest) (*entities.Attachment, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(writer, req)
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attachments/upload", pr)
	if err != nil {
		return nil, errors.ErrInternal(err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if err := c.authorize(ctx, httpReq); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.ErrTransient("POST /attachments/upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.statusToError("POST /attachments/upload", resp)
	}

	var attachment entities.Attachment
	if err := decodeJSON(resp.Body, &attachment); err != nil {
		return nil, errors.ErrTransient("POST /attachments/upload", err)
	}
	return &attachment, nil
}

func writeUploadForm(writer *multipart.Writer, req UploadAttachmentRequest) error {
	if err := writer.WriteField("consultation_id", req.EncounterID.String()); err != nil {
		return err
	}
	if err := writer.WriteField("patient_id", req.PatientID.String()); err != nil {
		return err
	}
	if err := writer.WriteField("category", req.Category); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("file", req.FileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, req.Content); err != nil {
		return fmt.Errorf("copy file content: %w", err)
	}
	return nil
}

// DeleteAttachment removes an attachment remotely.
func (c *Client) DeleteAttachment(ctx context.Context, attachmentID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/attachments/"+attachmentID.String(), nil, nil)
}

// DownloadAttachment streams the attachment content. The caller owns
// the returned reader and must close it.
func (c *Client) DownloadAttachment(ctx context.Context, attachment entities.Attachment) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return nil, errors.ErrInternal(err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.ErrTransient("GET "+attachment.URL, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, c.statusToError("GET "+attachment.URL, resp)
	}
	return resp.Body, nil
}
