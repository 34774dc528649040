package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iliyamo/neighborhood-lottery/internal/config"
)

// Sender delivers a plain text message to the admins.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// TelegramSender posts to a single admin chat.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("notifier: telegram bot authorized as @%s", bot.Self.UserName)
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

func (t *TelegramSender) Send(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

// Notifier watches the form settings and reminds admins:
//   - once when the scheduled close time passes while the form is open;
//   - once per reminder weekday to turn processed selections red.
//
// It never changes any state; locking the form stays a manual action.
type Notifier struct {
	gates      *Gates
	selections SelectionStore
	sender     Sender
	rules      config.LotteryConfig
	now        func() time.Time

	mu           sync.Mutex
	alertedClose time.Time
	remindedDay  string
}

func NewNotifier(gates *Gates, selections SelectionStore, sender Sender, rules config.LotteryConfig) *Notifier {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	return &Notifier{gates: gates, selections: selections, sender: sender, rules: rules, now: time.Now}
}

// Run ticks every interval until ctx is done.
func (n *Notifier) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		n.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Tick runs one round of checks.
func (n *Notifier) Tick(ctx context.Context) {
	if err := n.checkClose(ctx); err != nil {
		log.Printf("notifier: close check: %v", err)
	}
	if err := n.checkReminder(ctx); err != nil {
		log.Printf("notifier: reminder: %v", err)
	}
}

func (n *Notifier) checkClose(ctx context.Context) error {
	st, err := n.gates.FormStatus(ctx)
	if err != nil {
		return err
	}
	if !st.CloseTimeReached || st.FormCloseDate == nil {
		return nil
	}
	n.mu.Lock()
	already := n.alertedClose.Equal(*st.FormCloseDate)
	n.mu.Unlock()
	if already {
		return nil
	}
	local := st.FormCloseDate.In(n.rules.Location).Format("Mon 02 Jan 15:04")
	if err := n.sender.Send(ctx, fmt.Sprintf("The form close time (%s) has passed and the form is still open. Lock it from the admin panel.", local)); err != nil {
		return err
	}
	n.mu.Lock()
	n.alertedClose = *st.FormCloseDate
	n.mu.Unlock()
	return nil
}

func (n *Notifier) checkReminder(ctx context.Context) error {
	local := n.now().In(n.rules.Location)
	if local.Weekday() != n.rules.ReminderWeekday {
		return nil
	}
	day := local.Format("2006-01-02")
	n.mu.Lock()
	done := n.remindedDay == day
	n.mu.Unlock()
	if done {
		return nil
	}
	green, err := n.selections.CountActiveGreen(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Reminder: it is %s. %d green selections are waiting; turn processed ones red.", local.Weekday(), green)
	if err := n.sender.Send(ctx, text); err != nil {
		return err
	}
	n.mu.Lock()
	n.remindedDay = day
	n.mu.Unlock()
	return nil
}
