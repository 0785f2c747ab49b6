package app

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/amanthanvi/registry/internal/storage"
	"github.com/go-playground/validator/v10"
)

type MemberService struct {
	members  storage.MemberRepository
	logger   *slog.Logger
	validate *validator.Validate
}

func NewMemberService(members storage.MemberRepository, logger *slog.Logger) *MemberService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MemberService{
		members:  members,
		logger:   logger,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func (s *MemberService) checkInput(in MemberInput) (MemberInput, error) {
	in = in.normalized()
	if err := s.validate.Struct(in); err != nil {
		return in, newValidationError(err)
	}
	return in, nil
}

// Create stores a new member and returns the id assigned by the store.
func (s *MemberService) Create(ctx context.Context, in MemberInput) (int64, error) {
	in, err := s.checkInput(in)
	if err != nil {
		return 0, err
	}

	member := in.toMember()
	if err := s.members.Create(ctx, member); err != nil {
		s.logger.Warn("create member failed", "cnic_number", in.CNICNumber, "error", err)
		return 0, translateStorageError("create member", in.CNICNumber, err)
	}
	s.logger.Info("member created", "member_id", member.ID, "cnic_number", member.CNICNumber)
	return member.ID, nil
}

// List performs a full scan and applies the optional substring filter. The
// store's native order is kept.
func (s *MemberService) List(ctx context.Context, req ListMembersRequest) ([]storage.Member, error) {
	field := strings.TrimSpace(req.Field)
	switch field {
	case "", SearchFieldName:
		field = SearchFieldName
	case SearchFieldCNIC:
	default:
		return nil, fmt.Errorf("%w: unsupported search field %q", ErrValidation, req.Field)
	}

	members, err := s.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	search := strings.ToLower(strings.TrimSpace(req.Search))
	if search == "" {
		return members, nil
	}

	filtered := make([]storage.Member, 0, len(members))
	for _, member := range members {
		value := member.Name
		if field == SearchFieldCNIC {
			value = member.CNICNumber
		}
		if strings.Contains(strings.ToLower(value), search) {
			filtered = append(filtered, member)
		}
	}
	return filtered, nil
}

// FindByCNIC reports found=false with a nil error when no member carries the
// number.
func (s *MemberService) FindByCNIC(ctx context.Context, cnicNumber string) (storage.Member, bool, error) {
	member, found, err := s.members.FindByCNIC(ctx, strings.TrimSpace(cnicNumber))
	if err != nil {
		return storage.Member{}, false, fmt.Errorf("find member by cnic: %w", err)
	}
	return member, found, nil
}

func (s *MemberService) Get(ctx context.Context, id int64) (*storage.Member, error) {
	member, err := s.members.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get member %d: %w", id, err)
	}
	return member, nil
}

// Update replaces every mutable field of member id. A missing id fails with
// storage.ErrNotFound.
func (s *MemberService) Update(ctx context.Context, id int64, in MemberInput) error {
	in, err := s.checkInput(in)
	if err != nil {
		return err
	}

	if err := s.members.Update(ctx, id, in.toMember()); err != nil {
		s.logger.Warn("update member failed", "member_id", id, "error", err)
		return translateStorageError(fmt.Sprintf("update member %d", id), in.CNICNumber, err)
	}
	s.logger.Info("member updated", "member_id", id, "cnic_number", in.CNICNumber)
	return nil
}

// Delete removes member id. Unlike Update, a missing id is not an error.
func (s *MemberService) Delete(ctx context.Context, id int64) error {
	removed, err := s.members.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete member %d: %w", id, err)
	}
	s.logger.Info("member delete", "member_id", id, "removed", removed)
	return nil
}

func (s *MemberService) Count(ctx context.Context) (int, error) {
	count, err := s.members.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}
