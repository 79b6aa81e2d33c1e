package waitlist

import (
	"context"
	"crypto/rand"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/nxuacademy/backend/core"
)

var (
	// errors
	ErrNotFound            = errors.New("waitlist entry not found")
	ErrEmailExists         = errors.New("this email is already registered")
	ErrInvalidReferralCode = errors.New("invalid referral code")
)

type Repository interface {
	CreateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)
	GetEntry(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Entry, error)
	CountReferrals(ctx context.Context, entryID int, exec ...core.DBExecutor) (int, error)
}

type Service struct {
	repo    Repository
	mailSvc core.EmailService
	conf    *core.Config
}

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

// Join registers a signup, resolving an optional referral code to its owner
// and minting a fresh code for the new entry.
func (svc *Service) Join(ctx context.Context, ne NewEntry) (Entry, error) {
	var referredByID null.Int
	if ne.ReferralCode != "" {
		referrer, err := svc.repo.GetEntry(ctx, GetFilter{ReferralCode: ne.ReferralCode})
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return Entry{}, core.NewValidationError(ErrInvalidReferralCode, core.FieldError{Field: "referral_code", Error: ErrInvalidReferralCode.Error()})
			}
			return Entry{}, errors.Wrap(err, "finding referrer")
		}
		referredByID = null.IntFrom(referrer.ID)
	}

	interests := ne.CourseInterests
	if len(interests) == 0 {
		interests = []string{DefaultCourseInterest}
	}

	code, err := generateReferralCode()
	if err != nil {
		return Entry{}, errors.Wrap(err, "generating referral code")
	}

	entry, err := svc.repo.CreateEntry(ctx, Entry{
		FullName:        ne.FullName,
		Email:           ne.Email,
		ReferralCode:    code,
		ReferredByID:    referredByID,
		CourseInterests: interests,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return Entry{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return Entry{}, errors.Wrap(err, "creating waitlist entry")
	}

	svc.sendWelcomeMail(entry)
	return entry, nil
}

// ReferralCount returns how many signups a referral code has brought in.
func (svc *Service) ReferralCount(ctx context.Context, code string) (int, error) {
	entry, err := svc.repo.GetEntry(ctx, GetFilter{ReferralCode: code})
	if err != nil {
		return 0, err
	}
	return svc.repo.CountReferrals(ctx, entry.ID)
}

func (svc *Service) sendWelcomeMail(entry Entry) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: entry.FullName, Address: entry.Email}},
			Subject:      "Welcome to the waitlist",
			TemplateName: "waitlist-welcome",
			TemplateData: struct {
				FullName     string
				ReferralCode string
			}{entry.FullName, entry.ReferralCode},
		},
	)
}

const (
	referralCodeLen      = 8
	referralCodeAlphabet = "useandom26T198340PX75pxJACKVERYMINDBUSHWOLFGQZbfghjklqvwyzrict"
)

// generateReferralCode mints a short url-safe code, the shape users share.
func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(buf), nil
}
