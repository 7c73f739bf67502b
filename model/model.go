package model

import (
	"time"
)

// User is one subscriber record, keyed by Telegram user ID.
// Records are created lazily on first contact and never deleted;
// historical counters survive a lapsed subscription.
type User struct {
	ID        int64 `gorm:"primaryKey"` // Telegram User ID
	CreatedAt time.Time
	UpdatedAt time.Time

	// Subscription window. Nil means no active or past subscription
	// is tracked; the sweeper clears it back to nil on expiry.
	ExpiresAt *time.Time `gorm:"index"`

	// Referral link. Set at most once, at first contact.
	ReferredBy     *int64
	ReferralsCount int `gorm:"default:0"`

	// FirstPaymentDone gates referral crediting to exactly one
	// trigger per referee.
	FirstPaymentDone bool `gorm:"default:false"`

	TotalPaidCycles int `gorm:"default:0"`

	// BonusDays is referral bonus time staged for the next grant,
	// consumed (reset to 0) atomically with it.
	BonusDays int `gorm:"default:0"`
}

// Active reports whether the user holds an unexpired subscription at now.
func (u *User) Active(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.After(now)
}
