package subscription

import (
	"time"

	"subgate-bot/model"
)

// Grant extends the user's subscription by the base length plus any
// staged bonus days, consuming the bonus in the same write. Grants on
// an active subscription stack on top of the remaining time.
func (s *Service) Grant(userID int64) (time.Time, error) {
	var expires time.Time
	err := s.ledger.Update(userID, func(u *model.User) error {
		total := s.baseDays + u.BonusDays
		u.BonusDays = 0
		expires = addDays(u.ExpiresAt, s.now(), total)
		u.ExpiresAt = &expires
		u.TotalPaidCycles++
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return expires, nil
}
