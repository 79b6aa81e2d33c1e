package waitlist

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/nxuacademy/backend/core"
)

// DefaultCourseInterest is assumed when a signup names no courses.
const DefaultCourseInterest = "AWS_CLOUD_PRACTITIONER"

type Entry struct {
	ID              int       `json:"id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	ReferralCode    string    `json:"referral_code"`
	ReferredByID    null.Int  `json:"referred_by_id"`
	CourseInterests []string  `json:"course_interests"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewEntry contains information needed to join the waitlist.
type NewEntry struct {
	FullName        string   `json:"full_name" validate:"required,min=2,max=100"`
	Email           string   `json:"email" validate:"required,email,max=100"`
	ReferralCode    string   `json:"referral_code" validate:"omitempty,max=50"`
	CourseInterests []string `json:"course_interests" validate:"omitempty,dive,required"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.FullName = core.CleanString(ne.FullName)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.ReferralCode = core.CleanString(ne.ReferralCode)
	return validate.Struct(ne)
}

// GetFilter matches an Entry by email or referral code.
type GetFilter struct {
	Email        string
	ReferralCode string
}
