package app

import (
	"strings"

	"github.com/amanthanvi/registry/internal/storage"
)

const (
	MessageMemberAdded   = "Member added successfully"
	MessageMemberUpdated = "Member updated successfully"
	MessageMemberDeleted = "Member deleted successfully"
	MessageMemberMissing = "Member not found"
)

const (
	SearchFieldName = "name"
	SearchFieldCNIC = "cnic_number"
)

// MemberInput is the full set of mutable member fields. Updates replace all
// of them; there is no partial update.
type MemberInput struct {
	Name              string `json:"name" validate:"required"`
	FatherHusbandName string `json:"father_husband_name" validate:"required"`
	Gender            string `json:"gender" validate:"required"`
	CNICNumber        string `json:"cnic_number" validate:"required"`
	DateOfBirth       string `json:"date_of_birth" validate:"required"`
	DateOfIssue       string `json:"date_of_issue" validate:"required"`
	DateOfExpiry      string `json:"date_of_expiry" validate:"required"`
	CNICFrontImage    []byte `json:"cnic_front_image,omitempty"`
	CNICBackImage     []byte `json:"cnic_back_image,omitempty"`
}

// InputFromMember copies the mutable fields of an existing record.
func InputFromMember(member storage.Member) MemberInput {
	return MemberInput{
		Name:              member.Name,
		FatherHusbandName: member.FatherHusbandName,
		Gender:            member.Gender,
		CNICNumber:        member.CNICNumber,
		DateOfBirth:       member.DateOfBirth,
		DateOfIssue:       member.DateOfIssue,
		DateOfExpiry:      member.DateOfExpiry,
		CNICFrontImage:    member.CNICFrontImage,
		CNICBackImage:     member.CNICBackImage,
	}
}

func (in MemberInput) normalized() MemberInput {
	in.Name = strings.TrimSpace(in.Name)
	in.FatherHusbandName = strings.TrimSpace(in.FatherHusbandName)
	in.Gender = strings.TrimSpace(in.Gender)
	in.CNICNumber = strings.TrimSpace(in.CNICNumber)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.DateOfIssue = strings.TrimSpace(in.DateOfIssue)
	in.DateOfExpiry = strings.TrimSpace(in.DateOfExpiry)
	if len(in.CNICFrontImage) == 0 {
		in.CNICFrontImage = nil
	}
	if len(in.CNICBackImage) == 0 {
		in.CNICBackImage = nil
	}
	return in
}

func (in MemberInput) toMember() *storage.Member {
	return &storage.Member{
		Name:              in.Name,
		FatherHusbandName: in.FatherHusbandName,
		Gender:            in.Gender,
		CNICNumber:        in.CNICNumber,
		DateOfBirth:       in.DateOfBirth,
		DateOfIssue:       in.DateOfIssue,
		DateOfExpiry:      in.DateOfExpiry,
		CNICFrontImage:    in.CNICFrontImage,
		CNICBackImage:     in.CNICBackImage,
	}
}

// ListMembersRequest filters the full scan. An empty Search returns every
// member; Field selects name (default) or cnic_number.
type ListMembersRequest struct {
	Search string
	Field  string
}

type ConflictMode string

const (
	ConflictModeSkip      ConflictMode = "skip"
	ConflictModeOverwrite ConflictMode = "overwrite"
)

// ExportBundle is the portable JSON form of the registry. Images travel as
// base64 strings.
type ExportBundle struct {
	Version    int            `json:"version"`
	ExportedAt string         `json:"exported_at"`
	Members    []ExportMember `json:"members"`
}

type ExportMember struct {
	Name              string `json:"name"`
	FatherHusbandName string `json:"father_husband_name"`
	Gender            string `json:"gender"`
	CNICNumber        string `json:"cnic_number"`
	DateOfBirth       string `json:"date_of_birth"`
	DateOfIssue       string `json:"date_of_issue"`
	DateOfExpiry      string `json:"date_of_expiry"`
	CNICFrontImage    []byte `json:"cnic_front_image,omitempty"`
	CNICBackImage     []byte `json:"cnic_back_image,omitempty"`
}

type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type BackupCreateRequest struct {
	OutputPath string
	ConfigPath string
}

type BackupRestoreRequest struct {
	InputPath  string
	TargetDir  string
	Overwrite  bool
	ConfigPath string
}

type BackupManifest struct {
	Version       int                           `json:"version"`
	CreatedAt     string                        `json:"created_at"`
	SchemaVersion int                           `json:"schema_version"`
	MemberCount   int                           `json:"member_count"`
	Files         map[string]BackupManifestFile `json:"files"`
}

type BackupManifestFile struct {
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}
