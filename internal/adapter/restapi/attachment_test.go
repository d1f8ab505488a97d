package restapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

func TestUploadAttachmentMultipartForm(t *testing.T) {
	encounterID := uuid.New()
	patientID := uuid.New()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attachments/upload" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("consultation_id"); got != encounterID.String() {
			t.Errorf("consultation_id = %q", got)
		}
		if got := r.FormValue("patient_id"); got != patientID.String() {
			t.Errorf("patient_id = %q", got)
		}
		if got := r.FormValue("category"); got != "lab_result" {
			t.Errorf("category = %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "cbc.pdf" {
			t.Errorf("filename = %q", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "pdf-bytes" {
			t.Errorf("content = %q", content)
		}

		json.NewEncoder(w).Encode(entities.Attachment{
			ID:       uuid.New(),
			FileName: header.Filename,
			MimeType: "application/pdf",
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	attachment, err := client.UploadAttachment(context.Background(), UploadAttachmentRequest{
		EncounterID: encounterID,
		PatientID:   patientID,
		Category:    "lab_result",
		FileName:    "cbc.pdf",
		MimeType:    "application/pdf",
		Content:     strings.NewReader("pdf-bytes"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if attachment.FileName != "cbc.pdf" {
		t.Fatalf("unexpected attachment %+v", attachment)
	}
}
