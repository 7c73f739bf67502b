package subscription

import (
	"log"

	"subgate-bot/model"
)

// Sweep revokes channel access for every lapsed subscription: the user
// is removed and immediately un-banned so a future approval lets them
// back in, the expiration is cleared, and the user is told. A failure
// for one user never blocks the rest.
func (s *Service) Sweep() {
	now := s.now()
	lapsed, err := s.ledger.Expired(now)
	if err != nil {
		log.Printf("sweep: %v", err)
		return
	}

	for _, u := range lapsed {
		if err := s.tr.RemoveMember(u.ID); err != nil {
			log.Printf("sweep: remove %d: %v", u.ID, err)
		} else if err := s.tr.RestoreMember(u.ID); err != nil {
			log.Printf("sweep: restore %d: %v", u.ID, err)
		}

		err := s.ledger.Update(u.ID, func(r *model.User) error {
			r.ExpiresAt = nil
			return nil
		})
		if err != nil {
			log.Printf("sweep: clear %d: %v", u.ID, err)
			continue
		}

		msg := "⛔ Your subscription has expired and channel access was revoked. Pay again to come back!"
		if err := s.tr.SendText(u.ID, msg); err != nil {
			log.Printf("sweep: notify %d: %v", u.ID, err)
		}
	}
}
