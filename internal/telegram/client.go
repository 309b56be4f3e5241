package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const (
	defaultMaxRetries = 2
	maxRetryAfter     = 30 * time.Second
)

// allowedUpdates limits getUpdates to the update types the bot handles
var allowedUpdates = []string{"message", "callback_query"}

// Outbound confirms a message delivered to the platform
type Outbound struct {
	MessageID int
	ChatID    int64
}

// Client talks to the Telegram Bot API through telebot without running
// telebot's own poller, so the receive loop owns offsets and error pacing.
type Client struct {
	bot        *tele.Bot
	logger     *zap.Logger
	maxRetries int
}

// NewClient creates a new platform client
func NewClient(bot *tele.Bot, logger *zap.Logger) *Client {
	return &Client{
		bot:        bot,
		logger:     logger,
		maxRetries: defaultMaxRetries,
	}
}

// Updates long-polls for updates starting at offset. The call returns early
// with the context error when ctx ends.
func (c *Client) Updates(ctx context.Context, offset int, timeout time.Duration) ([]tele.Update, error) {
	params := map[string]string{
		"offset":  strconv.Itoa(offset),
		"timeout": strconv.Itoa(int(timeout / time.Second)),
	}
	allowed, _ := json.Marshal(allowedUpdates)
	params["allowed_updates"] = string(allowed)

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := c.bot.Raw("getUpdates", params)
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, classify("getUpdates", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, classify("getUpdates", r.err)
		}
		var resp struct {
			Result []tele.Update `json:"result"`
		}
		if err := json.Unmarshal(r.data, &resp); err != nil {
			return nil, classify("getUpdates", fmt.Errorf("failed to decode updates: %w", err))
		}
		return resp.Result, nil
	}
}

// SendText sends a plain text message, optionally with reply markup
func (c *Client) SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (*Outbound, error) {
	opts := &tele.SendOptions{}
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	return c.send(ctx, "sendMessage", chatID, text, opts)
}

// NotifyText sends a plain text notice outside of a conversation turn
func (c *Client) NotifyText(ctx context.Context, chatID int64, text string) error {
	_, err := c.SendText(ctx, chatID, text, nil)
	return err
}

// SendFormatted sends a MarkdownV2 message
func (c *Client) SendFormatted(ctx context.Context, chatID int64, text string) (*Outbound, error) {
	return c.send(ctx, "sendMessage", chatID, text, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2})
}

// SendAudio uploads an audio file read from r. The reader is consumed once,
// so a rate limited upload is not retried.
func (c *Client) SendAudio(
	ctx context.Context,
	chatID int64,
	r io.Reader,
	fileName string,
	markup *tele.ReplyMarkup,
) (*Outbound, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("sendAudio", err)
	}

	audio := &tele.Audio{
		File:     tele.FromReader(r),
		FileName: fileName,
	}
	opts := &tele.SendOptions{}
	if markup != nil {
		opts.ReplyMarkup = markup
	}

	msg, err := c.bot.Send(tele.ChatID(chatID), audio, opts)
	if err != nil {
		return nil, classify("sendAudio", err)
	}
	return outbound(msg, chatID), nil
}

// SendChatAction shows a status such as "sending file" in the chat
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action tele.ChatAction) error {
	return c.withRetry(ctx, "sendChatAction", func() error {
		return c.bot.Notify(tele.ChatID(chatID), action)
	})
}

// AnswerCallback acknowledges a button press. text may be empty.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	cb := &tele.Callback{ID: callbackID}
	return c.withRetry(ctx, "answerCallbackQuery", func() error {
		return c.bot.Respond(cb, &tele.CallbackResponse{Text: text})
	})
}

func (c *Client) send(ctx context.Context, op string, chatID int64, what interface{}, opts *tele.SendOptions) (*Outbound, error) {
	var msg *tele.Message
	err := c.withRetry(ctx, op, func() error {
		var err error
		msg, err = c.bot.Send(tele.ChatID(chatID), what, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outbound(msg, chatID), nil
}

// withRetry repeats fn only when the platform asked to slow down. Such a
// request was rejected outright, so repeating it cannot duplicate a message.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return classify(op, ctxErr)
		}

		err = classify(op, fn())
		if err == nil {
			return nil
		}

		var pe *PlatformError
		if !errors.As(err, &pe) || pe.Kind != KindRateLimited || attempt == c.maxRetries {
			return err
		}

		delay := pe.RetryAfter
		if delay <= 0 {
			delay = time.Second
		}
		if delay > maxRetryAfter {
			return err
		}

		c.logger.Warn("Rate limited by Telegram, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_after", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return classify(op, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}

func outbound(msg *tele.Message, chatID int64) *Outbound {
	out := &Outbound{ChatID: chatID}
	if msg != nil {
		out.MessageID = msg.ID
		if msg.Chat != nil {
			out.ChatID = msg.Chat.ID
		}
	}
	return out
}
