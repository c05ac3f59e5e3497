package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"profitsniffer/internal/domain/model"
	domainsvc "profitsniffer/internal/domain/service"
)

// Registrar creates a subscriber on first contact.
type Registrar interface {
	Register(ctx context.Context, id string) (*model.Subscriber, bool, error)
}

// Poller answers /start: the chat is registered as a subscriber and greeted.
type Poller struct {
	client      *Client
	registrar   Registrar
	pollTimeout time.Duration
	retryDelay  time.Duration
}

func NewPoller(client *Client, registrar Registrar, pollTimeout time.Duration) *Poller {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Poller{client: client, registrar: registrar, pollTimeout: pollTimeout, retryDelay: 5 * time.Second}
}

func (p *Poller) Run(ctx context.Context) error {
	log.Info().Msg("telegram poller started")
	var offset int64
	for {
		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("telegram getUpdates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryDelay):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.Handle(ctx, u)
		}
	}
}

// Handle processes one update.
func (p *Poller) Handle(ctx context.Context, u Update) {
	if u.Message == nil || !isStart(u.Message.Text) {
		return
	}
	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	if _, _, err := p.registrar.Register(ctx, chatID); err != nil {
		log.Error().Err(err).Str("chat", chatID).Msg("register subscriber failed")
		return
	}
	if err := p.client.Notify(ctx, chatID, domainsvc.WelcomeMessage); err != nil {
		log.Warn().Err(err).Str("chat", chatID).Msg("send welcome failed")
	}
}

// isStart matches "/start", "/start payload" and "/start@BotName".
func isStart(text string) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd == "/start"
}
