package domain

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusPrinted Status = "printed"
	StatusExpired Status = "expired"
	StatusDeleted Status = "deleted"
)

// allowedTransitions is the closed lifecycle table. printed and expired are
// terminal except for explicit deletion.
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusPrinted, StatusExpired, StatusDeleted},
	StatusPrinted: {StatusDeleted},
	StatusExpired: {StatusDeleted},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Document is one deposited artifact awaiting pickup at a center. The
// encryption key is owned exclusively by this record and must never be
// logged or returned to a client.
type Document struct {
	ID            string    `json:"id"`
	CenterID      string    `json:"center_id"`
	FileName      string    `json:"file_name"`
	MimeType      string    `json:"mime_type"`
	BlobKey       string    `json:"-"`
	EncryptionKey []byte    `json:"-"`
	OTP           string    `json:"-"`
	OTPExpiresAt  time.Time `json:"otp_expires_at"`
	Status        Status    `json:"status"`
	Destination   string    `json:"-"`
	UploaderName  string    `json:"uploader_name,omitempty"`
	UploaderPhone string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PrintGrant is the time-boxed access artifact returned by a successful
// redemption. The handle stops working at ExpiresAt whether or not the
// staged bytes were ever fetched.
type PrintGrant struct {
	DocumentID string    `json:"document_id"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	StagedPath string    `json:"-"`
	Handle     string    `json:"handle"`
	ExpiresAt  time.Time `json:"expires_at"`
}
