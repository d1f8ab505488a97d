package entities

import (
	"time"

	"github.com/google/uuid"
)

// Attachment represents a file bound to an encounter. Append-only list
// with explicit delete.
type Attachment struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	URL        string    `json:"url"`
	Category   string    `json:"category,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}
