package testutil

import (
	"context"
	"io"

	"musicpipe/internal/domain"
	"musicpipe/internal/downloader"
	"musicpipe/internal/telegram"

	"github.com/stretchr/testify/mock"
	tele "gopkg.in/telebot.v3"
)

// MockUserStateRepository is a mock for UserStateRepository
type MockUserStateRepository struct {
	mock.Mock
}

func (m *MockUserStateRepository) GetOrCreate(ctx context.Context, telegramID int64) (*domain.UserState, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserState), args.Error(1)
}

func (m *MockUserStateRepository) Update(
	ctx context.Context,
	current *domain.UserState,
	next domain.StateName,
	nextCtx domain.StateContext,
) (*domain.UserState, error) {
	args := m.Called(ctx, current, next, nextCtx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserState), args.Error(1)
}

// MockSender is a mock for the chat platform sender
type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (*telegram.Outbound, error) {
	args := m.Called(ctx, chatID, text, markup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.Outbound), args.Error(1)
}

func (m *MockSender) SendFormatted(ctx context.Context, chatID int64, text string) (*telegram.Outbound, error) {
	args := m.Called(ctx, chatID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.Outbound), args.Error(1)
}

func (m *MockSender) SendChatAction(ctx context.Context, chatID int64, action tele.ChatAction) error {
	args := m.Called(ctx, chatID, action)
	return args.Error(0)
}

func (m *MockSender) SendAudio(
	ctx context.Context,
	chatID int64,
	r io.Reader,
	fileName string,
	markup *tele.ReplyMarkup,
) (*telegram.Outbound, error) {
	args := m.Called(ctx, chatID, r, fileName, markup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.Outbound), args.Error(1)
}

func (m *MockSender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	args := m.Called(ctx, callbackID, text)
	return args.Error(0)
}

// MockDownloader is a mock for the download pipeline
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, req downloader.Request) (*downloader.Track, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(context.Context, downloader.Request) *downloader.Track); ok {
		return fn(ctx, req), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*downloader.Track), args.Error(1)
}

func (m *MockDownloader) Cleanup(downloadID string) error {
	args := m.Called(downloadID)
	return args.Error(0)
}

// MockBackend is a mock for the backend API client
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) RegisterUser(ctx context.Context, telegramID int64, phrase string) error {
	args := m.Called(ctx, telegramID, phrase)
	return args.Error(0)
}

func (m *MockBackend) UpdateSession(ctx context.Context, phrase, sessionID string) error {
	args := m.Called(ctx, phrase, sessionID)
	return args.Error(0)
}

// MockPhraseLookup is a mock for connection phrase lookups
type MockPhraseLookup struct {
	mock.Mock
}

func (m *MockPhraseLookup) GetByPhrase(ctx context.Context, phrase string) (*domain.UserState, error) {
	args := m.Called(ctx, phrase)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserState), args.Error(1)
}

// MockNotifier is a mock for out-of-turn chat notices
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyText(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}
