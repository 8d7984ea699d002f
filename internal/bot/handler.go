package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"jetpreview/internal/config"
	"jetpreview/internal/domain"
	"jetpreview/internal/storage"
)

// Previewer resolves preview metadata without failing.
type Previewer interface {
	Preview(ctx context.Context, url string) domain.Metadata
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot       *tgbot.Bot
	repo      storage.Repository
	previewer Previewer
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewHandler creates a new bot handler instance.
func NewHandler(cfg config.TelegramConfig, repo storage.Repository, previewer Previewer, logger logrus.FieldLogger) (*Handler, error) {
	log := logger.WithField("component", "bot_handler")

	h := &Handler{
		repo:      repo,
		previewer: previewer,
		log:       log,
		now:       time.Now,
	}

	// Plain text that is not a command is treated as links to save
	b, err := tgbot.New(cfg.Token, tgbot.WithDefaultHandler(h.defaultHandler))
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b

	h.registerHandlers()

	log.Info("Telegram bot handler initialized")
	return h, nil
}

// registerHandlers sets up the command handlers.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/list", tgbot.MatchTypeExact, h.listHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/delete", tgbot.MatchTypePrefix, h.deleteHandler)
	h.log.Info("Registered /start, /list and /delete command handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

const welcomeMessage = "Welcome to JetPreview! Send me a website link and I'll save it with its preview.\n" +
	"/list shows your bookmarks, /delete <url> removes one."

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	h.reply(ctx, b, update, "/start", welcomeMessage)
}

// listHandler handles the /list command.
func (h *Handler) listHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	h.reply(ctx, b, update, "/list", h.listReply(ctx, update.Message.From.ID))
}

// deleteHandler handles /delete <url>.
func (h *Handler) deleteHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	h.reply(ctx, b, update, "/delete", h.deleteReply(ctx, update.Message.From.ID, update.Message.Text))
}

// defaultHandler saves every link found in a text message.
func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	h.reply(ctx, b, update, "", h.saveReply(ctx, update.Message.From.ID, update.Message.Text))
}

func (h *Handler) reply(ctx context.Context, b *tgbot.Bot, update *models.Update, command, text string) {
	log := h.log.WithFields(logrus.Fields{
		"user_id": update.Message.From.ID,
		"command": command,
	})
	log.Info("Handling message")

	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	})
	if err != nil {
		log.WithError(err).Error("Failed to send reply")
	}
}

func (h *Handler) saveReply(ctx context.Context, userID int64, text string) string {
	urls := extractURLs(text)
	if len(urls) == 0 {
		return "Send me a link to save it, or use /list to see your bookmarks."
	}

	var lines []string
	for _, u := range urls {
		md := h.previewer.Preview(ctx, u)
		link := domain.NewLink(userID, u, md, h.now())
		if err := h.repo.SaveLink(ctx, link); err != nil {
			h.log.WithError(err).WithField("url", u).Error("Failed to save link")
			lines = append(lines, "Could not save "+u)
			continue
		}
		lines = append(lines, "Saved: "+link.Title)
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) listReply(ctx context.Context, userID int64) string {
	links, err := h.repo.GetLinksByUser(ctx, userID)
	if err != nil {
		return "Could not load your bookmarks, please try again later."
	}
	return formatLinkList(links)
}

func (h *Handler) deleteReply(ctx context.Context, userID int64, text string) string {
	target := strings.TrimSpace(strings.TrimPrefix(text, "/delete"))
	if target == "" {
		return "Usage: /delete <url>"
	}

	if _, err := h.repo.GetLink(ctx, userID, target); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "No bookmark for " + target
		}
		return "Could not delete the bookmark, please try again later."
	}
	if err := h.repo.DeleteLink(ctx, userID, target); err != nil {
		return "Could not delete the bookmark, please try again later."
	}
	return "Deleted " + target
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// extractURLs returns the distinct http(s) URLs in text in order of
// appearance, without trailing punctuation.
func extractURLs(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, match := range urlPattern.FindAllString(text, -1) {
		u := strings.TrimRight(match, ".,;:!?)]'")
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

func formatLinkList(links []domain.Link) string {
	if len(links) == 0 {
		return "You have no saved links yet."
	}
	var sb strings.Builder
	sb.WriteString("Your bookmarks:\n")
	for i, link := range links {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, link.Title, link.URL)
		if link.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", truncate(link.Description, 120))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
