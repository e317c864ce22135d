package telegram

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"cryptofolio/config"
	"cryptofolio/pkg/cache"
	"cryptofolio/pkg/logger"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// ErrNotConfigured is returned when a user has no delivery credentials.
// Callers are expected to skip the notification, not fail the tick.
var ErrNotConfigured = errors.New("telegram credentials not configured")

// Credentials identifies one delivery channel. Each user brings their own
// bot token and chat, so the bot instance cannot be process-global.
type Credentials struct {
	BotToken string
	ChatID   int64
}

type Notifier interface {
	Send(ctx context.Context, creds Credentials, message string) error
}

type notifier struct {
	cfg     *config.TelegramConfig
	log     *logger.Logger
	bots    cache.Cache
	limiter *rate.Limiter
	mu      sync.Mutex
}

func NewNotifier(cfg *config.TelegramConfig, log *logger.Logger, bots cache.Cache) Notifier {
	return &notifier{
		cfg:     cfg,
		log:     log,
		bots:    bots,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxRequestPerSecond), cfg.MaxRequestPerSecond),
	}
}

func (n *notifier) Send(ctx context.Context, creds Credentials, message string) error {
	if creds.BotToken == "" || creds.ChatID == 0 {
		return ErrNotConfigured
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	bot, err := n.botFor(creds.BotToken)
	if err != nil {
		return err
	}

	_, err = bot.Send(telebot.ChatID(creds.ChatID), message, telebot.ModeMarkdown)
	return err
}

// botFor returns a cached bot for the token, creating one on first use.
// Offline settings skip the getMe probe so construction never hits the
// network; sending still does.
func (n *notifier) botFor(token string) (*telebot.Bot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := "telegram_bot:" + token
	if v, ok := n.bots.Get(key); ok {
		if bot, ok := v.(*telebot.Bot); ok {
			return bot, nil
		}
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: n.cfg.Timeout},
	})
	if err != nil {
		return nil, err
	}

	n.bots.Set(key, bot, n.cfg.BotCacheDuration)
	return bot, nil
}
