package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSSMClient は SSMParameterGetter のテスト用モック
type MockSSMClient struct {
	mock.Mock
}

func (m *MockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ssm.GetParameterOutput), args.Error(1)
}

func paramNamed(name string) interface{} {
	return mock.MatchedBy(func(input *ssm.GetParameterInput) bool {
		return aws.ToString(input.Name) == name
	})
}

func paramOutput(value string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(value)}}
}

// --- デフォルト値 ---

func TestFromViper_Defaults(t *testing.T) {
	cfg := fromViper(newViper())

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, SourceGoogle, cfg.Calendar.Source)
	assert.Equal(t, "primary", cfg.Calendar.ID)
	assert.Equal(t, int64(10), cfg.Calendar.MaxResults)
	assert.Equal(t, 15*time.Second, cfg.Calendar.FetchTimeout)
	assert.Equal(t, "schedule!B2:E", cfg.Sheet.Range)
	assert.Equal(t, "REMINDER", cfg.Reminder.Marker)
	assert.Equal(t, "SPREADSHEET", cfg.Reminder.ScheduleMarker)
	assert.Equal(t, "exact-day", cfg.Reminder.DayPolicy)
	assert.Equal(t, "window", cfg.Reminder.DetailPolicy)
	assert.Equal(t, 1, cfg.Reminder.DefaultOffset)
	assert.Equal(t, NotifierSlack, cfg.Notifier.Kind)
	assert.Equal(t, "0 17 * * *", cfg.ReminderCron)
	assert.Equal(t, "*/30 * * * *", cfg.SheetCron)
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("CALENDAR_SOURCE", "ICAL")
	t.Setenv("ICAL_FEED_URL", "https://example.com/lab.ics")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("REMINDER_DEFAULT_OFFSET", "2")
	t.Setenv("BRAIN_BACKEND", "Redis")

	cfg := fromViper(newViper())

	assert.Equal(t, SourceICal, cfg.Calendar.Source)
	assert.Equal(t, "https://example.com/lab.ics", cfg.Calendar.ICalFeedURL)
	assert.Equal(t, 3*time.Second, cfg.Calendar.FetchTimeout)
	assert.Equal(t, 2, cfg.Reminder.DefaultOffset)
	assert.Equal(t, BrainRedis, cfg.Brain.Backend)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
}

// --- GoogleCredentialsJSON テスト ---

func TestGoogleCredentialsJSON_Valid(t *testing.T) {
	cfg := &Config{GoogleCredentials: `{"type": "service_account", "project_id": "test"}`}
	raw, err := cfg.GoogleCredentialsJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "service_account", "project_id": "test"}`, string(raw))
}

func TestGoogleCredentialsJSON_Invalid(t *testing.T) {
	cfg := &Config{GoogleCredentials: "not valid json"}
	_, err := cfg.GoogleCredentialsJSON()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Google認証情報のJSON解析に失敗しました")
}

// --- loadLocalConfig テスト ---

func TestLoadLocalConfig_MissingRequired(t *testing.T) {
	// 必須環境変数が未設定の状態をシミュレート
	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("SLACK_BOT_TOKEN", "")

	_, err := loadLocalConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_CREDENTIALS環境変数が設定されていません")
	assert.Contains(t, err.Error(), "SLACK_BOT_TOKEN環境変数が設定されていません")
}

func TestLoadLocalConfig_ICal(t *testing.T) {
	t.Setenv("CALENDAR_SOURCE", "ical")
	t.Setenv("ICAL_FEED_URL", "https://example.com/lab.ics")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SPREADSHEET_ID", "")

	cfg, err := loadLocalConfig()
	require.NoError(t, err)
	assert.Equal(t, "xoxb-test", cfg.Notifier.SlackBotToken)
	assert.Equal(t, "", cfg.Brain.Backend)
}

func TestIsLambda(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	assert.False(t, IsLambda())

	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "calendar-reminder")
	assert.True(t, IsLambda())
}

func TestLoad_OutsideLambdaUsesLocalConfig(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	t.Setenv("CALENDAR_SOURCE", "ical")
	t.Setenv("ICAL_FEED_URL", "https://example.com/lab.ics")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-local")
	t.Setenv("SPREADSHEET_ID", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "xoxb-local", cfg.Notifier.SlackBotToken)
	assert.Equal(t, "", cfg.Brain.Backend)
}

func TestValidate_UnknownValues(t *testing.T) {
	cfg := &Config{
		Calendar: CalendarConfig{Source: "outlook"},
		Notifier: NotifierConfig{Kind: "mail"},
		Brain:    BrainConfig{Backend: "etcd"},
	}
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未知のCALENDAR_SOURCEです")
	assert.Contains(t, err.Error(), "未知のNOTIFIERです")
	assert.Contains(t, err.Error(), "未知のBRAIN_BACKENDです")
}

// --- getParameter テスト（モック使用） ---

func TestGetParameter_Success(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}

	mockSSM.On("GetParameter", mock.Anything, mock.MatchedBy(func(input *ssm.GetParameterInput) bool {
		return *input.Name == "/test/param" && *input.WithDecryption == true
	})).Return(paramOutput("test-value"), nil)

	result, err := cfg.getParameter(context.Background(), "/test/param", true)
	require.NoError(t, err)
	assert.Equal(t, "test-value", result)
	mockSSM.AssertExpectations(t)
}

func TestGetParameter_EmptyValue(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}

	mockSSM.On("GetParameter", mock.Anything, mock.Anything).Return(paramOutput(""), nil)

	_, err := cfg.getParameter(context.Background(), "/test/param", true)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "空の値です")
}

func TestGetParameter_APIError(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}

	mockSSM.On("GetParameter", mock.Anything, mock.Anything).Return(nil, errors.New("SSM API error"))

	_, err := cfg.getParameter(context.Background(), "/test/param", true)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "パラメータ /test/param の取得に失敗しました")
	mockSSM.AssertExpectations(t)
}

// --- loadWithParameterStore テスト ---

func TestLoadWithParameterStore(t *testing.T) {
	t.Setenv("CALENDAR_SOURCE", "caldav")
	t.Setenv("CALDAV_URL", "https://caldav.example.com")
	t.Setenv("CALDAV_CALENDAR_PATH", "/calendars/lab/")
	t.Setenv("CALDAV_PASSWORD", "")
	t.Setenv("SPREADSHEET_ID", "sheet-id")
	t.Setenv("BRAIN_BACKEND", "")
	t.Setenv("NOTIFIER", "")

	mockSSM := new(MockSSMClient)
	mockSSM.On("GetParameter", mock.Anything, paramNamed("/calendar-reminder/google-creds")).
		Return(paramOutput(`{"type":"service_account"}`), nil)
	mockSSM.On("GetParameter", mock.Anything, paramNamed("/calendar-reminder/slack-bot-token")).
		Return(paramOutput("xoxb-from-ssm"), nil)
	mockSSM.On("GetParameter", mock.Anything, paramNamed("/calendar-reminder/caldav-password")).
		Return(paramOutput("app-password"), nil)

	cfg, err := loadWithParameterStore(context.Background(), mockSSM)
	require.NoError(t, err)

	assert.Equal(t, `{"type":"service_account"}`, cfg.GoogleCredentials)
	assert.Equal(t, "xoxb-from-ssm", cfg.Notifier.SlackBotToken)
	assert.Equal(t, "app-password", cfg.Calendar.CalDAVPassword)
	assert.Equal(t, BrainSSM, cfg.Brain.Backend)
	mockSSM.AssertExpectations(t)
}

func TestLoadWithParameterStore_Error(t *testing.T) {
	t.Setenv("CALENDAR_SOURCE", "google")
	t.Setenv("NOTIFIER", "")

	mockSSM := new(MockSSMClient)
	mockSSM.On("GetParameter", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := loadWithParameterStore(context.Background(), mockSSM)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Parameter Storeからの設定読み込みに失敗しました")
}
