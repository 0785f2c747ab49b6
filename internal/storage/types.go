package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrConstraint   = errors.New("storage: constraint violation")
	ErrUnavailable  = errors.New("storage: store unavailable")
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")
)

// Member is one identity record. ID and CreatedAt are assigned by the store
// and ignored on input. An image is either absent or non-empty: a zero-length
// scan is stored as NULL and reads back as nil.
type Member struct {
	ID                int64     `json:"id,omitempty"`
	Name              string    `json:"name"`
	FatherHusbandName string    `json:"father_husband_name"`
	Gender            string    `json:"gender"`
	CNICNumber        string    `json:"cnic_number"`
	DateOfBirth       string    `json:"date_of_birth"`
	DateOfIssue       string    `json:"date_of_issue"`
	DateOfExpiry      string    `json:"date_of_expiry"`
	CNICFrontImage    []byte    `json:"cnic_front_image,omitempty"`
	CNICBackImage     []byte    `json:"cnic_back_image,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type MemberRepository interface {
	Create(ctx context.Context, member *Member) error
	List(ctx context.Context) ([]Member, error)
	FindByCNIC(ctx context.Context, cnicNumber string) (Member, bool, error)
	Get(ctx context.Context, id int64) (*Member, error)
	Update(ctx context.Context, id int64, member *Member) error
	// Delete reports whether a row was removed. A missing id is not an error.
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}
