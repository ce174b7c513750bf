package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

// MockCalendarRepository は CalendarRepository のテスト用モック
type MockCalendarRepository struct {
	mock.Mock
}

func (m *MockCalendarRepository) GetEvents(ctx context.Context, targetDate time.Time) ([]domain.Event, error) {
	args := m.Called(ctx, targetDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

// MockSheetRepository は SheetRepository のテスト用モック
type MockSheetRepository struct {
	mock.Mock
}

func (m *MockSheetRepository) GetScheduleRows(ctx context.Context) ([][]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]string), args.Error(1)
}

// MockSubscriptionRepository は SubscriptionRepository のテスト用モック
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) LoadSubscriptions(ctx context.Context) (map[string]bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockSubscriptionRepository) SaveSubscriptions(ctx context.Context, subscriptions map[string]bool) error {
	args := m.Called(ctx, subscriptions)
	return args.Error(0)
}

// MockScheduleRepository は ScheduleRepository のテスト用モック
type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) LoadSchedule(ctx context.Context) ([]domain.ScheduleEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScheduleEntry), args.Error(1)
}

func (m *MockScheduleRepository) SaveSchedule(ctx context.Context, entries []domain.ScheduleEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

// MockNotifier は Notifier のテスト用モック
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendReminder(ctx context.Context, channelID string, message domain.ReminderMessage) error {
	args := m.Called(ctx, channelID, message)
	return args.Error(0)
}

func (m *MockNotifier) UploadFile(ctx context.Context, channelID string, file domain.ScheduleFile) error {
	args := m.Called(ctx, channelID, file)
	return args.Error(0)
}

// MockObserver は DispatchObserver / ScheduleObserver のテスト用モック
type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) ObserveDispatch(status string, sent int) {
	m.Called(status, sent)
}

func (m *MockObserver) ObserveScheduleCheck(status string) {
	m.Called(status)
}
