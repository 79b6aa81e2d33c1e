package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/waitlist"
)

type waitlistRepository struct {
	db core.DB
}

var _ waitlist.Repository = (*waitlistRepository)(nil) // interface compliance check

func NewWaitlistRepository(db core.DB) *waitlistRepository {
	return &waitlistRepository{db: db}
}

func (repo waitlistRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

type entryRow struct {
	ID              int            `db:"id"`
	FullName        string         `db:"full_name"`
	Email           string         `db:"email"`
	ReferralCode    string         `db:"referral_code"`
	ReferredByID    null.Int       `db:"referred_by_id"`
	CourseInterests pq.StringArray `db:"course_interests"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r entryRow) unpack() waitlist.Entry {
	return waitlist.Entry{
		ID:              r.ID,
		FullName:        r.FullName,
		Email:           r.Email,
		ReferralCode:    r.ReferralCode,
		ReferredByID:    r.ReferredByID,
		CourseInterests: r.CourseInterests,
		CreatedAt:       r.CreatedAt,
	}
}

func (repo waitlistRepository) CreateEntry(ctx context.Context, e waitlist.Entry, exec ...core.DBExecutor) (waitlist.Entry, error) {
	const query = `
		INSERT INTO waitlist (full_name, email, referral_code, referred_by_id, course_interests, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := repo.getExec(exec).QueryRowxContext(
		ctx, query,
		e.FullName, e.Email, e.ReferralCode, e.ReferredByID, pq.StringArray(e.CourseInterests), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		if mapped, ok := trapUniqueErr(err, "waitlist_email_key", waitlist.ErrEmailExists); ok {
			return waitlist.Entry{}, mapped
		}
		return waitlist.Entry{}, errors.Wrap(err, "inserting waitlist entry")
	}
	return e, nil
}

func (repo waitlistRepository) GetEntry(ctx context.Context, filter waitlist.GetFilter, exec ...core.DBExecutor) (waitlist.Entry, error) {
	var (
		row   entryRow
		query = `SELECT * FROM waitlist WHERE `
		arg   interface{}
	)
	switch {
	case filter.Email != "":
		query += `email = $1`
		arg = filter.Email
	case filter.ReferralCode != "":
		query += `referral_code = $1`
		arg = filter.ReferralCode
	default:
		return waitlist.Entry{}, waitlist.ErrNotFound
	}

	if err := repo.getExec(exec).GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return waitlist.Entry{}, waitlist.ErrNotFound
		}
		return waitlist.Entry{}, errors.Wrap(err, "finding waitlist entry")
	}
	return row.unpack(), nil
}

func (repo waitlistRepository) CountReferrals(ctx context.Context, entryID int, exec ...core.DBExecutor) (int, error) {
	var count int
	err := repo.getExec(exec).GetContext(ctx, &count, `SELECT COUNT(*) FROM waitlist WHERE referred_by_id = $1`, entryID)
	if err != nil {
		return 0, errors.Wrap(err, "counting referrals")
	}
	return count, nil
}
