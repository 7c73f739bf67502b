package bot

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"subgate-bot/config"
	"subgate-bot/store"
	"subgate-bot/subscription"

	"gopkg.in/telebot.v3"
)

// Review buttons attached to every relayed proof. Data carries the
// target user ID; telebot routes clicks back here by Unique.
var (
	btnApprove = telebot.Btn{Text: "✅ Approve", Unique: "approve"}
	btnReject  = telebot.Btn{Text: "❌ Reject", Unique: "reject"}
)

type Bot struct {
	B      *telebot.Bot
	cfg    *config.Config
	ledger store.Ledger
	svc    *subscription.Service
}

func New(cfg *config.Config, ledger store.Ledger) (*Bot, error) {
	pref := telebot.Settings{
		Token:  cfg.BotToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, err
	}

	return &Bot{
		B:      b,
		cfg:    cfg,
		ledger: ledger,
	}, nil
}

// Bind attaches the subscription service and registers all handlers.
// Split from New because the service needs the bot as its transport.
func (bot *Bot) Bind(svc *subscription.Service) {
	bot.svc = svc
	bot.registerHandlers()
}

func (bot *Bot) Start() {
	bot.B.Start()
}

func (bot *Bot) registerHandlers() {
	// Commands
	bot.B.Handle("/start", bot.handleStart)
	bot.B.Handle("/status", bot.handleStatus)
	bot.B.Handle("/help", bot.handleHelp)

	// Payment proof in any shape
	bot.B.Handle(telebot.OnPhoto, bot.handleProof)
	bot.B.Handle(telebot.OnDocument, bot.handleProof)
	bot.B.Handle(telebot.OnText, bot.handleProof)

	// Admin approve/reject buttons
	bot.B.Handle(&btnApprove, bot.handleCallback)
	bot.B.Handle(&btnReject, bot.handleCallback)
}

// --- Handlers ---

func (bot *Bot) handleStart(c telebot.Context) error {
	userID := c.Sender().ID
	if _, err := bot.ledger.Get(userID); err != nil {
		log.Printf("start: %v", err)
		return c.Send("Something went wrong, please try again later.")
	}

	// Deep-link referral payload: t.me/<bot>?start=ref_<userId>
	payload := strings.TrimSpace(c.Message().Payload)
	if strings.HasPrefix(payload, "ref_") {
		referrerID, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref_"), 10, 64)
		if err == nil {
			if _, err := bot.svc.LinkReferral(userID, referrerID); err != nil {
				log.Printf("start: link referral %d -> %d: %v", userID, referrerID, err)
			}
		}
	}

	return c.Send("👋 Welcome! This bot manages access to the private channel.\n\n" +
		"1. Transfer the subscription fee (see /help for details).\n" +
		"2. Send a screenshot or receipt of the transfer here.\n" +
		"3. Once the admin confirms it, you'll get a personal invite link.\n\n" +
		"Check /status for your subscription and referral link.")
}

func (bot *Bot) handleStatus(c telebot.Context) error {
	user, err := bot.ledger.Get(c.Sender().ID)
	if err != nil {
		log.Printf("status: %v", err)
		return c.Send("Something went wrong, please try again later.")
	}

	msg := "📋 Your subscription:\n"
	if user.Active(time.Now()) {
		msg += fmt.Sprintf("✅ Active until %s\n", user.ExpiresAt.Format("02.01.2006"))
	} else {
		msg += "❌ No active subscription\n"
	}
	if user.BonusDays > 0 {
		msg += fmt.Sprintf("🎁 Pending bonus days: %d (added to your next payment)\n", user.BonusDays)
	}
	msg += fmt.Sprintf("👥 Referrals credited: %d\n\n", user.ReferralsCount)
	msg += fmt.Sprintf("Invite friends and earn bonus days:\nhttps://t.me/%s?start=ref_%d",
		bot.B.Me.Username, user.ID)
	return c.Send(msg)
}

func (bot *Bot) handleHelp(c telebot.Context) error {
	return c.Send(fmt.Sprintf("💳 Subscription costs one transfer per %d days of access.\n"+
		"Send the payment proof (photo, file or text) right into this chat, "+
		"the admin reviews it manually.\n\n"+
		"/status — your expiration date and referral link\n"+
		"Every friend who joins via your link and pays gives you %d bonus days.",
		bot.cfg.BaseDays, bot.cfg.ReferralDays))
}

// handleProof relays a payment proof to the admin with approve/reject
// buttons attached.
func (bot *Bot) handleProof(c telebot.Context) error {
	if c.Chat().Type != telebot.ChatPrivate {
		return nil
	}
	sender := c.Sender()
	if sender.ID == bot.cfg.AdminID {
		return nil
	}
	if _, err := bot.ledger.Get(sender.ID); err != nil {
		log.Printf("proof: %v", err)
		return c.Send("Something went wrong, please try again later.")
	}

	caption := fmt.Sprintf("💳 Payment proof from %s (id %d)", displayName(sender), sender.ID)
	data := strconv.FormatInt(sender.ID, 10)
	approve, reject := btnApprove, btnReject
	approve.Data = data
	reject.Data = data
	menu := &telebot.ReplyMarkup{}
	menu.Inline(menu.Row(approve, reject))

	admin := &telebot.User{ID: bot.cfg.AdminID}
	var err error
	switch {
	case c.Message().Photo != nil:
		photo := *c.Message().Photo
		photo.Caption = caption
		_, err = bot.B.Send(admin, &photo, menu)
	case c.Message().Document != nil:
		doc := *c.Message().Document
		doc.Caption = caption
		_, err = bot.B.Send(admin, &doc, menu)
	default:
		if strings.HasPrefix(c.Text(), "/") {
			return c.Send("Unknown command, see /help.")
		}
		_, err = bot.B.Send(admin, caption+"\n\n"+c.Text(), menu)
	}
	if err != nil {
		log.Printf("proof: relay to admin: %v", err)
		return c.Send("Could not deliver your proof, please try again later.")
	}

	return c.Send("📨 Got it! Your proof was sent for review, you'll be notified shortly.")
}

// handleCallback routes the admin's approve/reject clicks.
func (bot *Bot) handleCallback(c telebot.Context) error {
	unique := strings.TrimSpace(c.Callback().Unique)
	data := strings.TrimSpace(c.Callback().Data)

	var action subscription.Action
	switch unique {
	case "approve":
		action = subscription.ActionApprove
	case "reject":
		action = subscription.ActionReject
	default:
		return nil
	}

	userID, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Broken button payload"})
	}

	decision, err := bot.svc.Decide(action, userID, c.Sender().ID)
	if err == subscription.ErrNotAdmin {
		return c.Respond(&telebot.CallbackResponse{
			Text:      "You are not allowed to do that.",
			ShowAlert: true,
		})
	}
	if err != nil {
		log.Printf("callback: decide %s %d: %v", action, userID, err)
		return c.Respond(&telebot.CallbackResponse{Text: "Failed, check the logs", ShowAlert: true})
	}

	var note, ack string
	if decision.Approved {
		note = fmt.Sprintf("✅ Approved — access until %s", decision.ExpiresAt.Format("02.01.2006"))
		ack = "Approved"
	} else {
		note = "❌ Rejected"
		ack = "Rejected"
	}
	bot.annotate(c.Callback().Message, note)

	return c.Respond(&telebot.CallbackResponse{Text: ack})
}

// annotate appends the verdict to the review message and drops its
// buttons so a second click has nothing to hit.
func (bot *Bot) annotate(msg *telebot.Message, note string) {
	if msg == nil {
		return
	}
	var err error
	if msg.Photo != nil || msg.Document != nil {
		_, err = bot.B.EditCaption(msg, msg.Caption+"\n\n"+note)
	} else {
		_, err = bot.B.Edit(msg, msg.Text+"\n\n"+note)
	}
	if err != nil {
		log.Printf("callback: annotate review message: %v", err)
	}
}

func displayName(u *telebot.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.Username != "" {
		if name == "" {
			return "@" + u.Username
		}
		return fmt.Sprintf("%s (@%s)", name, u.Username)
	}
	if name == "" {
		return "unknown"
	}
	return name
}
