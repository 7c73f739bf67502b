package subscription

import (
	"fmt"
	"log"

	"subgate-bot/model"
)

// LinkReferral records that newcomer userID was invited by referrerID.
// The link is write-once and a self-referral is ignored. Returns true
// when a new link was recorded.
func (s *Service) LinkReferral(userID, referrerID int64) (bool, error) {
	if userID == referrerID {
		return false, nil
	}
	linked := false
	err := s.ledger.Update(userID, func(u *model.User) error {
		if u.ReferredBy != nil {
			return nil
		}
		id := referrerID
		u.ReferredBy = &id
		linked = true
		return nil
	})
	if err != nil || !linked {
		return false, err
	}
	msg := "🎉 Someone joined using your referral link! You'll get bonus days once they make their first payment."
	if err := s.tr.SendText(referrerID, msg); err != nil {
		log.Printf("referral: notify referrer %d of signup: %v", referrerID, err)
	}
	return true, nil
}

// CreditFirstPayment awards the referral bonus for userID's first
// approved payment. Safe to call on every approval: the first-payment
// flag makes repeat calls no-ops, so a referrer is credited at most
// once per referee.
//
// The bonus lands directly on the referrer's expiration, not in their
// staged bonus days.
func (s *Service) CreditFirstPayment(userID int64) error {
	var referrer *int64
	err := s.ledger.Update(userID, func(u *model.User) error {
		if u.FirstPaymentDone {
			return nil
		}
		u.FirstPaymentDone = true
		referrer = u.ReferredBy
		return nil
	})
	if err != nil || referrer == nil {
		return err
	}

	err = s.ledger.Update(*referrer, func(r *model.User) error {
		r.ReferralsCount++
		expires := addDays(r.ExpiresAt, s.now(), s.referralDays)
		r.ExpiresAt = &expires
		return nil
	})
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("💰 Your referral made their first payment — %d bonus days added to your subscription!", s.referralDays)
	if err := s.tr.SendText(*referrer, msg); err != nil {
		log.Printf("referral: notify referrer %d of credit: %v", *referrer, err)
	}
	return nil
}
