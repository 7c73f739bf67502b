package bot

import (
	"time"

	"gopkg.in/telebot.v3"
)

// The Bot doubles as the subscription service's transport.

func (bot *Bot) SendText(userID int64, text string) error {
	_, err := bot.B.Send(&telebot.User{ID: userID}, text)
	return err
}

func (bot *Bot) CreateInvite(expireAt time.Time) (string, error) {
	link, err := bot.B.CreateInviteLink(&telebot.Chat{ID: bot.cfg.ChannelID}, &telebot.ChatInviteLink{
		ExpireUnixtime: expireAt.Unix(),
		MemberLimit:    1,
	})
	if err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

func (bot *Bot) RemoveMember(userID int64) error {
	return bot.B.Ban(&telebot.Chat{ID: bot.cfg.ChannelID}, &telebot.ChatMember{
		User: &telebot.User{ID: userID},
	})
}

func (bot *Bot) RestoreMember(userID int64) error {
	return bot.B.Unban(&telebot.Chat{ID: bot.cfg.ChannelID}, &telebot.User{ID: userID}, true)
}
