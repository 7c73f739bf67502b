package subscription

import (
	"time"

	"subgate-bot/config"
	"subgate-bot/store"
)

// Transport is the slice of the messaging platform the core needs. The
// bot package implements it over Telegram; tests substitute a fake.
type Transport interface {
	// SendText delivers a plain message to a user's private chat.
	SendText(userID int64, text string) error

	// CreateInvite issues a single-use channel invite link that stops
	// working at expireAt.
	CreateInvite(expireAt time.Time) (string, error)

	// RemoveMember ejects a user from the channel.
	RemoveMember(userID int64) error

	// RestoreMember lifts the removal so the user may rejoin via a
	// future invite.
	RestoreMember(userID int64) error
}

// Service owns the subscription lifecycle: grants, referral credits,
// admin decisions and the expiration sweep. It holds no state of its
// own; everything durable lives in the ledger.
type Service struct {
	ledger store.Ledger
	tr     Transport

	adminID        int64
	baseDays       int
	referralDays   int
	inviteTTL      time.Duration
	fallbackInvite string

	// now is swapped out in tests.
	now func() time.Time
}

func New(ledger store.Ledger, tr Transport, cfg *config.Config) *Service {
	return &Service{
		ledger:         ledger,
		tr:             tr,
		adminID:        cfg.AdminID,
		baseDays:       cfg.BaseDays,
		referralDays:   cfg.ReferralDays,
		inviteTTL:      cfg.InviteTTL,
		fallbackInvite: cfg.FallbackInvite,
		now:            time.Now,
	}
}

// addDays applies the stacking policy: an active subscription is
// extended from its current expiration, anything else starts from now.
func addDays(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(time.Duration(days) * 24 * time.Hour)
}
