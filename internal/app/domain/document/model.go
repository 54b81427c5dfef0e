package document

import "time"

// Kind classifies what an uploaded file is used for.
type Kind string

const (
	KindKYC           Kind = "kyc"
	KindPropertyImage Kind = "property_image"
	KindContract      Kind = "contract"
	KindOther         Kind = "other"
)

// Document is upload metadata. The bytes live in object storage under
// ObjectKey; SHA256 is the hex digest of the stored content.
type Document struct {
	ID          string
	OwnerUserID string
	EntityID    string
	Kind        Kind
	FileName    string
	ContentType string
	SizeBytes   int64
	ObjectKey   string
	SHA256      string
	CreatedAt   time.Time
}
