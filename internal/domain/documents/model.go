package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document maps to the client_documents table. The bytes live in the blob
// store under StorageKey.
type Document struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ClientID    uuid.UUID `db:"client_id" json:"client_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	Size        int64     `db:"size" json:"size"`
	SHA256      string    `db:"sha256" json:"sha256"`
	StorageKey  string    `db:"storage_key" json:"-"`
	UploadedBy  *string   `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
