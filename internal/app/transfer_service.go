package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const exportBundleVersion = 1

type TransferService struct {
	members *MemberService
}

func NewTransferService(members *MemberService) *TransferService {
	return &TransferService{members: members}
}

// ExportJSON renders every member, ordered by CNIC number, as a versioned
// bundle.
func (s *TransferService) ExportJSON(ctx context.Context) ([]byte, error) {
	if s == nil || s.members == nil {
		return nil, fmt.Errorf("export json: member service is nil")
	}

	members, err := s.members.List(ctx, ListMembersRequest{})
	if err != nil {
		return nil, fmt.Errorf("export json: %w", err)
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].CNICNumber < members[j].CNICNumber })

	bundle := ExportBundle{
		Version:    exportBundleVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Members:    make([]ExportMember, 0, len(members)),
	}
	for _, member := range members {
		bundle.Members = append(bundle.Members, ExportMember{
			Name:              member.Name,
			FatherHusbandName: member.FatherHusbandName,
			Gender:            member.Gender,
			CNICNumber:        member.CNICNumber,
			DateOfBirth:       member.DateOfBirth,
			DateOfIssue:       member.DateOfIssue,
			DateOfExpiry:      member.DateOfExpiry,
			CNICFrontImage:    member.CNICFrontImage,
			CNICBackImage:     member.CNICBackImage,
		})
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export json: marshal: %w", err)
	}
	return payload, nil
}

// ImportJSON loads a bundle produced by ExportJSON. Members are matched by
// CNIC number; mode decides what happens to an existing match.
func (s *TransferService) ImportJSON(ctx context.Context, payload []byte, mode ConflictMode) (ImportResult, error) {
	var result ImportResult

	if s == nil || s.members == nil {
		return result, fmt.Errorf("import json: member service is nil")
	}
	mode, err := normalizeConflictMode(mode)
	if err != nil {
		return result, err
	}
	if len(payload) == 0 {
		return result, fmt.Errorf("%w: empty payload", ErrValidation)
	}

	var bundle ExportBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return result, fmt.Errorf("%w: decode payload: %v", ErrValidation, err)
	}
	if bundle.Version != exportBundleVersion {
		return result, fmt.Errorf("%w: unsupported bundle version %d", ErrValidation, bundle.Version)
	}

	for i, member := range bundle.Members {
		if err := s.importMember(ctx, member, mode, &result); err != nil {
			return result, fmt.Errorf("import json: member %d: %w", i, err)
		}
	}
	return result, nil
}

func (s *TransferService) importMember(ctx context.Context, member ExportMember, mode ConflictMode, result *ImportResult) error {
	in := MemberInput{
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
	for _, field := range []struct{ name, value string }{
		{"name", in.Name},
		{"father_husband_name", in.FatherHusbandName},
		{"gender", in.Gender},
		{"cnic_number", in.CNICNumber},
		{"date_of_birth", in.DateOfBirth},
		{"date_of_issue", in.DateOfIssue},
		{"date_of_expiry", in.DateOfExpiry},
	} {
		if err := validateImportText(field.name, field.value); err != nil {
			return err
		}
	}

	existing, found, err := s.members.FindByCNIC(ctx, in.CNICNumber)
	if err != nil {
		return err
	}
	if !found {
		if _, err := s.members.Create(ctx, in); err != nil {
			return err
		}
		result.Created++
		return nil
	}

	switch mode {
	case ConflictModeSkip:
		result.Skipped++
		return nil
	case ConflictModeOverwrite:
		if err := s.members.Update(ctx, existing.ID, in); err != nil {
			return err
		}
		result.Updated++
		return nil
	default:
		return fmt.Errorf("%w: unsupported conflict mode %q", ErrValidation, mode)
	}
}

func normalizeConflictMode(mode ConflictMode) (ConflictMode, error) {
	if mode == "" {
		return ConflictModeSkip, nil
	}
	switch mode {
	case ConflictModeSkip, ConflictModeOverwrite:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unsupported conflict mode %q", ErrValidation, mode)
	}
}

// maxImportTextLength is counted in characters, not bytes.
const maxImportTextLength = 255

// validateImportText rejects control characters and overlong values in one
// bundle field.
func validateImportText(field, value string) error {
	for _, r := range value {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s contains control character U+%04X", ErrValidation, field, r)
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(value)) > maxImportTextLength {
		return fmt.Errorf("%w: %s exceeds %d character limit", ErrValidation, field, maxImportTextLength)
	}
	return nil
}
