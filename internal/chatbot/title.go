package chatbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"askdb/internal/llm"
	"askdb/internal/observability"
)

const (
	DefaultTitle = "New Chat"
	titleTurns   = 4
)

// GenerateTitle names a conversation from its first four turns. It never
// fails: any problem yields DefaultTitle.
func (cs *ChatService) GenerateTitle(ctx context.Context, history []Turn) string {
	if len(history) == 0 {
		return DefaultTitle
	}
	if len(history) > titleTurns {
		history = history[:titleTurns]
	}

	title, err := cs.title(ctx, history)
	if err != nil {
		cs.logger.WarnContext(ctx, "title generation failed",
			slog.String("request_id", observability.RequestIDFromContext(ctx)),
			slog.Any("error", err),
		)
		return DefaultTitle
	}
	return title
}

func (cs *ChatService) title(ctx context.Context, history []Turn) (string, error) {
	prompt, err := renderTitlePrompt(history)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, cs.cfg.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := llm.Prompt(ctx, cs.provider, cs.completionRequest(), prompt)
	observability.ObserveModelCall("title", time.Since(start), err)
	if err != nil {
		return "", err
	}

	title := cleanTitle(reply)
	if title == "" {
		return "", errors.New("empty title")
	}
	return title, nil
}

// cleanTitle drops every double quote and a pair of surrounding single or
// typographic quotes.
func cleanTitle(reply string) string {
	title := strings.TrimSpace(reply)
	title = strings.NewReplacer(`"`, "", "“", "", "”", "").Replace(title)
	for _, pair := range [][2]string{{"'", "'"}, {"‘", "’"}, {"`", "`"}} {
		if len(title) >= 2 && strings.HasPrefix(title, pair[0]) && strings.HasSuffix(title, pair[1]) {
			title = title[len(pair[0]) : len(title)-len(pair[1])]
		}
	}
	return strings.TrimSpace(title)
}
