package subscription

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// Action is an admin's verdict on a payment proof.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ErrNotAdmin is returned when anybody but the configured administrator
// tries to decide on a payment.
var ErrNotAdmin = errors.New("decision from non-admin identity")

// Decision is the outcome handed back to the transport layer so it can
// annotate the review message.
type Decision struct {
	Approved  bool
	ExpiresAt time.Time
	Invite    string
}

// Decide processes an admin verdict. On approval it runs the grant,
// credits the referrer, issues a single-use invite and notifies the
// user, strictly in that order; a failed step is logged and does not
// roll back the earlier ones. On rejection only the user is told.
func (s *Service) Decide(action Action, userID, actingAdminID int64) (*Decision, error) {
	if actingAdminID != s.adminID {
		return nil, ErrNotAdmin
	}

	switch action {
	case ActionReject:
		msg := "❌ Your payment was not confirmed. Double-check the transfer and send the proof again."
		if err := s.tr.SendText(userID, msg); err != nil {
			log.Printf("decide: notify %d of rejection: %v", userID, err)
		}
		return &Decision{Approved: false}, nil

	case ActionApprove:
		expires, err := s.Grant(userID)
		if err != nil {
			return nil, err
		}
		if err := s.CreditFirstPayment(userID); err != nil {
			log.Printf("decide: referral credit for %d: %v", userID, err)
		}
		invite := s.issueInvite(expires)

		msg := fmt.Sprintf("✅ Payment confirmed! Your access is valid until %s.\nJoin here (link works once): %s",
			expires.Format("02.01.2006"), invite)
		if err := s.tr.SendText(userID, msg); err != nil {
			log.Printf("decide: notify %d of approval: %v", userID, err)
		}
		if err := s.tr.SendText(userID, "ℹ️ If the link expires before you join, ping the admin for a fresh one. Invite friends with /status to earn bonus days."); err != nil {
			log.Printf("decide: onboarding for %d: %v", userID, err)
		}
		return &Decision{Approved: true, ExpiresAt: expires, Invite: invite}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

// issueInvite requests a single-use link valid until the invite TTL or
// the subscription end, whichever comes first. On failure it falls back
// to the static invite.
func (s *Service) issueInvite(expiresAt time.Time) string {
	expire := s.now().Add(s.inviteTTL)
	if expiresAt.Before(expire) {
		expire = expiresAt
	}
	link, err := s.tr.CreateInvite(expire)
	if err != nil {
		log.Printf("decide: create invite: %v", err)
		return s.fallbackInvite
	}
	return link
}
