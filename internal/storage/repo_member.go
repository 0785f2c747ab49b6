package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const membersTable = "members"

var memberColumns = []string{
	"id",
	"name",
	"father_husband_name",
	"gender",
	"cnic_number",
	"date_of_birth",
	"date_of_issue",
	"date_of_expiry",
	"cnic_front_image",
	"cnic_back_image",
	"created_at",
}

type memberRepository struct {
	db   *sqlx.DB
	stmt sq.StatementBuilderType
}

func newMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{
		db:   db,
		stmt: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// memberRow mirrors the members table. created_at is read as text because the
// driver may return either a string or a time for DATETIME columns.
type memberRow struct {
	ID                int64          `db:"id"`
	Name              string         `db:"name"`
	FatherHusbandName string         `db:"father_husband_name"`
	Gender            string         `db:"gender"`
	CNICNumber        string         `db:"cnic_number"`
	DateOfBirth       string         `db:"date_of_birth"`
	DateOfIssue       string         `db:"date_of_issue"`
	DateOfExpiry      string         `db:"date_of_expiry"`
	CNICFrontImage    []byte         `db:"cnic_front_image"`
	CNICBackImage     []byte         `db:"cnic_back_image"`
	CreatedAt         sql.NullString `db:"created_at"`
}

func (r memberRow) toMember() (Member, error) {
	createdAt, err := parseNullableTimestamp(r.CreatedAt)
	if err != nil {
		return Member{}, err
	}
	return Member{
		ID:                r.ID,
		Name:              r.Name,
		FatherHusbandName: r.FatherHusbandName,
		Gender:            r.Gender,
		CNICNumber:        r.CNICNumber,
		DateOfBirth:       r.DateOfBirth,
		DateOfIssue:       r.DateOfIssue,
		DateOfExpiry:      r.DateOfExpiry,
		CNICFrontImage:    r.CNICFrontImage,
		CNICBackImage:     r.CNICBackImage,
		CreatedAt:         createdAt,
	}, nil
}

func (r *memberRepository) Create(ctx context.Context, member *Member) error {
	if member == nil {
		return fmt.Errorf("create member: member is nil")
	}

	query, args, err := r.stmt.Insert(membersTable).
		Columns(
			"name",
			"father_husband_name",
			"gender",
			"cnic_number",
			"date_of_birth",
			"date_of_issue",
			"date_of_expiry",
			"cnic_front_image",
			"cnic_back_image",
		).
		Values(
			member.Name,
			member.FatherHusbandName,
			member.Gender,
			member.CNICNumber,
			member.DateOfBirth,
			member.DateOfIssue,
			member.DateOfExpiry,
			nullableBytes(member.CNICFrontImage),
			nullableBytes(member.CNICBackImage),
		).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("create member: build query: %w", err)
	}

	var inserted struct {
		ID        int64          `db:"id"`
		CreatedAt sql.NullString `db:"created_at"`
	}
	if err := r.db.GetContext(ctx, &inserted, query, args...); err != nil {
		return translateError("create member", err)
	}

	createdAt, err := parseNullableTimestamp(inserted.CreatedAt)
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	member.ID = inserted.ID
	member.CreatedAt = createdAt
	return nil
}

// List returns every member in the order SQLite yields them. No ORDER BY is
// applied, so callers must not rely on a sort order.
func (r *memberRepository) List(ctx context.Context) ([]Member, error) {
	query, args, err := r.stmt.Select(memberColumns...).From(membersTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("list members: build query: %w", err)
	}

	var rows []memberRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translateError("list members", err)
	}

	members := make([]Member, 0, len(rows))
	for _, row := range rows {
		member, err := row.toMember()
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		members = append(members, member)
	}
	return members, nil
}

func (r *memberRepository) FindByCNIC(ctx context.Context, cnicNumber string) (Member, bool, error) {
	query, args, err := r.stmt.Select(memberColumns...).
		From(membersTable).
		Where(sq.Eq{"cnic_number": cnicNumber}).
		ToSql()
	if err != nil {
		return Member{}, false, fmt.Errorf("find member by cnic: build query: %w", err)
	}

	// The UNIQUE constraint guarantees at most one row; Select rather than Get
	// keeps a corrupted duplicate from being silently hidden.
	var rows []memberRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return Member{}, false, translateError("find member by cnic", err)
	}
	switch len(rows) {
	case 0:
		return Member{}, false, nil
	case 1:
	default:
		return Member{}, false, fmt.Errorf("find member by cnic: %w: %d rows share cnic number", ErrConstraint, len(rows))
	}

	member, err := rows[0].toMember()
	if err != nil {
		return Member{}, false, fmt.Errorf("find member by cnic: %w", err)
	}
	return member, true, nil
}

func (r *memberRepository) Get(ctx context.Context, id int64) (*Member, error) {
	query, args, err := r.stmt.Select(memberColumns...).
		From(membersTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("get member: build query: %w", err)
	}

	var row memberRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translateError("get member", err)
	}

	member, err := row.toMember()
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &member, nil
}

// Update overwrites the nine mutable columns of the row with the given id.
// created_at is never written.
func (r *memberRepository) Update(ctx context.Context, id int64, member *Member) error {
	if member == nil {
		return fmt.Errorf("update member: member is nil")
	}

	query, args, err := r.stmt.Update(membersTable).
		Set("name", member.Name).
		Set("father_husband_name", member.FatherHusbandName).
		Set("gender", member.Gender).
		Set("cnic_number", member.CNICNumber).
		Set("date_of_birth", member.DateOfBirth).
		Set("date_of_issue", member.DateOfIssue).
		Set("date_of_expiry", member.DateOfExpiry).
		Set("cnic_front_image", nullableBytes(member.CNICFrontImage)).
		Set("cnic_back_image", nullableBytes(member.CNICBackImage)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("update member: build query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError("update member", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return translateError("update member: rows affected", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	member.ID = id
	return nil
}

func (r *memberRepository) Delete(ctx context.Context, id int64) (bool, error) {
	query, args, err := r.stmt.Delete(membersTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("delete member: build query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, translateError("delete member", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, translateError("delete member: rows affected", err)
	}
	return count > 0, nil
}

func (r *memberRepository) Count(ctx context.Context) (int, error) {
	query, args, err := r.stmt.Select("COUNT(*)").From(membersTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("count members: build query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, translateError("count members", err)
	}
	return count, nil
}
