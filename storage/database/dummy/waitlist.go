package dummydb

import (
	"context"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/waitlist"
)

type waitlistRepository struct {
	db *DB
}

var _ waitlist.Repository = (*waitlistRepository)(nil) // interface compliance check

func NewWaitlistRepository(db *DB) *waitlistRepository {
	return &waitlistRepository{db: db}
}

func (repo *waitlistRepository) CreateEntry(ctx context.Context, e waitlist.Entry, exec ...core.DBExecutor) (waitlist.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.waitlist {
		if existing.Email == e.Email {
			return waitlist.Entry{}, waitlist.ErrEmailExists
		}
	}

	repo.db.entryPK++
	e.ID = repo.db.entryPK
	repo.db.waitlist[e.ID] = e
	return e, nil
}

func (repo *waitlistRepository) GetEntry(ctx context.Context, filter waitlist.GetFilter, exec ...core.DBExecutor) (waitlist.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.waitlist {
		if filter.Email != "" && e.Email == filter.Email {
			return e, nil
		}
		if filter.ReferralCode != "" && e.ReferralCode == filter.ReferralCode {
			return e, nil
		}
	}
	return waitlist.Entry{}, waitlist.ErrNotFound
}

func (repo *waitlistRepository) CountReferrals(ctx context.Context, entryID int, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, e := range repo.db.waitlist {
		if e.ReferredByID.Valid && e.ReferredByID.Int == entryID {
			count++
		}
	}
	return count, nil
}
