package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/amanthanvi/registry/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestMemberServiceCreateValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	svc, _ := newAppTestService(t)
	in := validInput("12345-1234567-1")
	in.Name = "   "
	in.DateOfExpiry = ""

	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, KindValidation, KindOf(err))
	require.Contains(t, Flatten(err), "name is required")
	require.Contains(t, Flatten(err), "date_of_expiry is required")
}

func TestMemberServiceCreateAcceptsFreeFormValues(t *testing.T) {
	t.Parallel()

	svc, _ := newAppTestService(t)
	in := validInput("not-a-real-cnic")
	in.Gender = "prefer not to say"
	in.DateOfBirth = "sometime in spring"

	id, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.NotZero(t, id)
}

func TestMemberServiceCreateTrimsInput(t *testing.T) {
	t.Parallel()

	svc, _ := newAppTestService(t)
	in := validInput("  12345-1234567-1  ")
	in.Name = "  Ali  "

	_, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	member, found, err := svc.FindByCNIC(context.Background(), "12345-1234567-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Ali", member.Name)
}

func TestMemberServiceCreateRejectsDuplicateCNIC(t *testing.T) {
	t.Parallel()

	svc, _ := newAppTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput("12345-1234567-1"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, validInput("12345-1234567-1"))
	require.ErrorIs(t, err, ErrDuplicateCNIC)
	require.ErrorIs(t, err, storage.ErrConstraint)
	require.Equal(t, KindConstraintViolation, KindOf(err))
	require.Equal(t, "A member with CNIC number 12345-1234567-1 already exists", Flatten(err))
}

func TestMemberServiceScenario(t *testing.T) {
	t.Parallel()

	svc, _ := newAppTestService(t)
	ctx := context.Background()

	in := validInput("12345-1234567-1")
	in.Name = "Ali"
	id, err := svc.Create(ctx, in)
	require.NoError(t, err)

	members, err := svc.List(ctx, ListMembersRequest{})
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, id, members[0].ID)

	in.Name = "Ali Khan"
	require.NoError(t, svc.Update(ctx, id, in))

	member, found, err := svc.FindByCNIC(ctx, "12345-1234567-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Ali Khan", member.Name)

	require.NoError(t, svc.Delete(ctx, id))
	members, err = svc.List(ctx, ListMembersRequest{})
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestMemberServiceUpdateMissingIDIsNotFoundButDeleteIsNot(t *testing.T) {
	t.Parallel()

	svc, _ := newAppTestService(t)
	ctx := context.Background()

	err := svc.Update(ctx, 404, validInput("12345-1234567-1"))
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, KindNotFound, KindOf(err))
	require.Equal(t, MessageMemberMissing, Flatten(err))

	require.NoError(t, svc.Delete(ctx, 404))
	require.NoError(t, svc.Delete(ctx, 404))
}

func TestMemberServiceListFiltersByNameOrCNIC(t *testing.T) {
	t.Parallel()

	svc, _ := newAppTestService(t)
	ctx := context.Background()

	for _, seed := range []struct{ name, cnic string }{
		{"Ali Khan", "35202-0000001-1"},
		{"Sara Ali", "42101-0000002-2"},
		{"Bilal", "35202-0000003-3"},
	} {
		in := validInput(seed.cnic)
		in.Name = seed.name
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	byName, err := svc.List(ctx, ListMembersRequest{Search: "ALI"})
	require.NoError(t, err)
	require.Len(t, byName, 2)

	byCNIC, err := svc.List(ctx, ListMembersRequest{Search: "35202", Field: SearchFieldCNIC})
	require.NoError(t, err)
	names := []string{}
	for _, member := range byCNIC {
		names = append(names, member.Name)
	}
	require.ElementsMatch(t, []string{"Ali Khan", "Bilal"}, names)

	_, err = svc.List(ctx, ListMembersRequest{Search: "x", Field: "gender"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestMemberServiceFindUnknownCNICIsNotAnError(t *testing.T) {
	t.Parallel()

	svc, _ := newAppTestService(t)
	_, found, err := svc.FindByCNIC(context.Background(), "00000-0000000-0")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemberServiceLogsRedactableAttributes(t *testing.T) {
	t.Parallel()

	store := newAppTestStore(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewMemberService(store.Members, logger)

	id, err := svc.Create(context.Background(), validInput("12345-1234567-1"))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "member created", entry["msg"])
	require.EqualValues(t, id, entry["member_id"])
	require.Contains(t, entry, "cnic_number")
}

func TestKindOfAndFlattenClassifyStoreFailures(t *testing.T) {
	t.Parallel()

	unavailable := errors.Join(errors.New("list members"), storage.ErrUnavailable)
	require.Equal(t, KindStoreUnavailable, KindOf(unavailable))
	require.Contains(t, Flatten(unavailable), "Registry store unavailable")

	wrapped := fmt.Errorf("open registry in /data: %w: create data dir: permission denied", storage.ErrUnavailable)
	require.Equal(t, "Registry store unavailable: open registry in /data: create data dir: permission denied", Flatten(wrapped))
	require.Equal(t, "Registry store unavailable", Flatten(storage.ErrUnavailable))

	require.Equal(t, KindStoreUnavailable, KindOf(storage.ErrSchemaTooNew))

	other := errors.New("something odd")
	require.Equal(t, KindInternal, KindOf(other))
	require.Equal(t, "something odd", Flatten(other))

	require.Equal(t, ErrorKind(""), KindOf(nil))
	require.Empty(t, Flatten(nil))
}

func TestGreet(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Hello, Ayesha! You've been greeted from the registry!", Greet("Ayesha"))
}

func validInput(cnic string) MemberInput {
	return MemberInput{
		Name:              "Ali",
		FatherHusbandName: "Raza",
		Gender:            "Male",
		CNICNumber:        cnic,
		DateOfBirth:       "1990-02-14",
		DateOfIssue:       "2018-06-01",
		DateOfExpiry:      "2028-06-01",
	}
}

func newAppTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func newAppTestService(t *testing.T) (*MemberService, *storage.Store) {
	t.Helper()
	store := newAppTestStore(t)
	return NewMemberService(store.Members, nil), store
}
