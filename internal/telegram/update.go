package telegram

import (
	"strings"
	"unicode"

	"musicpipe/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// EventFromUpdate converts a raw update into a domain event. ok is false
// for update types the bot does not handle.
func EventFromUpdate(u tele.Update) (domain.Event, bool) {
	switch {
	case u.Message != nil:
		m := u.Message
		if m.Sender == nil || m.Chat == nil {
			return domain.Event{}, false
		}
		return domain.Event{
			UpdateID: u.ID,
			Kind:     domain.EventMessage,
			UserID:   m.Sender.ID,
			Username: m.Sender.Username,
			ChatID:   m.Chat.ID,
			Text:     m.Text,
		}, true

	case u.Callback != nil:
		cb := u.Callback
		if cb.Sender == nil {
			return domain.Event{}, false
		}
		ev := domain.Event{
			UpdateID:     u.ID,
			Kind:         domain.EventCallback,
			UserID:       cb.Sender.ID,
			Username:     cb.Sender.Username,
			ChatID:       cb.Sender.ID,
			CallbackID:   cb.ID,
			CallbackData: cleanCallbackData(cb.Data),
		}
		if cb.Message != nil && cb.Message.Chat != nil {
			ev.ChatID = cb.Message.Chat.ID
		}
		return ev, true
	}

	return domain.Event{}, false
}

// cleanCallbackData removes all non-printable characters from callback data
func cleanCallbackData(data string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, strings.TrimSpace(data))
}
