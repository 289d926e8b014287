package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cv-autofill/constants"
)

// ExtractionJob represents an extraction job for data transfer between layers.
type ExtractionJob struct {
	ID          uuid.UUID           `json:"id"`
	OwnerID     string              `json:"ownerId"`
	TenantID    string              `json:"tenantId"`
	Status      constants.JobStatus `json:"status"`
	FileName    string              `json:"fileName"`
	FileType    string              `json:"fileType"`
	FileSize    int64               `json:"fileSize"`
	PageCount   int                 `json:"pageCount"`
	ContentHash string              `json:"contentHash,omitempty"`
	Result      *Draft              `json:"result,omitempty"`
	ErrorCode   string              `json:"errorCode,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	ConfirmedAt *time.Time          `json:"confirmedAt,omitempty"`
}

// OwnedBy reports whether userID may read the job.
func (j *ExtractionJob) OwnedBy(userID string) bool {
	return j != nil && userID != "" && j.OwnerID == userID
}
