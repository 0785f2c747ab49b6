package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func memberGenerator() *rapid.Generator[*Member] {
	return rapid.Custom(func(t *rapid.T) *Member {
		member := &Member{
			Name:              rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,30}`).Draw(t, "name"),
			FatherHusbandName: rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,30}`).Draw(t, "father_husband_name"),
			Gender:            rapid.SampledFrom([]string{"Male", "Female", "Other", "x"}).Draw(t, "gender"),
			CNICNumber:        rapid.StringMatching(`[0-9]{5}-[0-9]{7}-[0-9]`).Draw(t, "cnic_number"),
			DateOfBirth:       rapid.StringMatching(`[0-9]{4}-[0-9]{2}-[0-9]{2}`).Draw(t, "date_of_birth"),
			DateOfIssue:       rapid.StringMatching(`[0-9]{4}-[0-9]{2}-[0-9]{2}`).Draw(t, "date_of_issue"),
			DateOfExpiry:      rapid.StringMatching(`[0-9]{4}-[0-9]{2}-[0-9]{2}`).Draw(t, "date_of_expiry"),
		}
		if rapid.Bool().Draw(t, "has_front") {
			member.CNICFrontImage = rapid.SliceOfN(rapid.Byte(), 1, 256).Draw(t, "cnic_front_image")
		}
		if rapid.Bool().Draw(t, "has_back") {
			member.CNICBackImage = rapid.SliceOfN(rapid.Byte(), 1, 256).Draw(t, "cnic_back_image")
		}
		return member
	})
}

func requireSameFields(t require.TestingT, want Member, got Member) {
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.FatherHusbandName, got.FatherHusbandName)
	require.Equal(t, want.Gender, got.Gender)
	require.Equal(t, want.CNICNumber, got.CNICNumber)
	require.Equal(t, want.DateOfBirth, got.DateOfBirth)
	require.Equal(t, want.DateOfIssue, got.DateOfIssue)
	require.Equal(t, want.DateOfExpiry, got.DateOfExpiry)
	require.Equal(t, want.CNICFrontImage, got.CNICFrontImage)
	require.Equal(t, want.CNICBackImage, got.CNICBackImage)
}

func TestPropertyDuplicateCNICLeavesOneRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		first := memberGenerator().Draw(rt, "first")
		second := memberGenerator().Draw(rt, "second")
		second.CNICNumber = first.CNICNumber

		require.NoError(rt, store.Members.Create(ctx, first))
		defer func() { _, _ = store.Members.Delete(ctx, first.ID) }()

		require.ErrorIs(rt, store.Members.Create(ctx, second), ErrConstraint)

		var count int
		require.NoError(rt, store.DB().Get(&count, `SELECT COUNT(1) FROM members WHERE cnic_number = ?`, first.CNICNumber))
		require.Equal(rt, 1, count)
	})
}

func TestPropertyCreateFindRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		member := memberGenerator().Draw(rt, "member")
		want := *member

		require.NoError(rt, store.Members.Create(ctx, member))
		defer func() { _, _ = store.Members.Delete(ctx, member.ID) }()

		got, ok, err := store.Members.FindByCNIC(ctx, member.CNICNumber)
		require.NoError(rt, err)
		require.True(rt, ok)
		require.Equal(rt, member.ID, got.ID)
		requireSameFields(rt, want, got)
	})
}

func TestPropertyUpdateReplacesFully(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		original := memberGenerator().Draw(rt, "original")
		replacement := memberGenerator().Draw(rt, "replacement")

		require.NoError(rt, store.Members.Create(ctx, original))
		defer func() { _, _ = store.Members.Delete(ctx, original.ID) }()

		before, err := store.Members.Get(ctx, original.ID)
		require.NoError(rt, err)

		want := *replacement
		require.NoError(rt, store.Members.Update(ctx, original.ID, replacement))

		got, ok, err := store.Members.FindByCNIC(ctx, want.CNICNumber)
		require.NoError(rt, err)
		require.True(rt, ok)
		require.Equal(rt, original.ID, got.ID)
		require.Equal(rt, before.CreatedAt, got.CreatedAt)
		requireSameFields(rt, want, got)
	})
}

func TestPropertyDeleteMissingIDIsStable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.Int64Range(1, 1<<40).Draw(rt, "id")

		first, err := store.Members.Delete(ctx, id)
		require.NoError(rt, err)
		second, err := store.Members.Delete(ctx, id)
		require.NoError(rt, err)
		require.False(rt, first)
		require.Equal(rt, first, second)
	})
}
