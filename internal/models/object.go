package models

import "time"

type ObjectStatus string

const (
	ObjectStatusPending    ObjectStatus = "pending"
	ObjectStatusProcessing ObjectStatus = "processing"
	ObjectStatusCompleted  ObjectStatus = "completed"
	ObjectStatusError      ObjectStatus = "error"
)

// ScannedObject is one catalog entry in a user's object gallery. StoragePath
// is the blob key derived at upload time; ImageURL is the resolved download
// reference and is only meaningful once the blob has been verified present.
type ScannedObject struct {
	ID          string
	UserID      string
	Name        string
	SafeName    string
	StoragePath string
	ImageURL    string
	ContentType string
	SizeBytes   int64
	Processed   bool
	Status      ObjectStatus
	ScannedAt   time.Time
	UpdatedAt   time.Time
}
