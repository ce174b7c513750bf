package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	SourceGoogle = "google"
	SourceICal   = "ical"
	SourceCalDAV = "caldav"

	NotifierSlack = "slack"
	NotifierLINE  = "line"

	BrainSSM    = "ssm"
	BrainRedis  = "redis"
	BrainSQLite = "sqlite"
	BrainMemory = "memory"
)

// SSMParameterGetter Parameter Storeからの取得を抽象化（テストで差し替え可能）
type SSMParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Config アプリケーション設定構造体
type Config struct {
	Env      string
	Timezone string
	Log      LogConfig

	Calendar CalendarConfig
	Sheet    SheetConfig
	Reminder ReminderConfig
	Notifier NotifierConfig
	Brain    BrainConfig

	// 常駐プロセス用
	ReminderCron string
	SheetCron    string
	MetricsAddr  string

	// Google認証情報（Calendar / Sheets 共通）
	GoogleCredentials string

	// AWS関連（Lambda実行時のみ）
	ssmClient SSMParameterGetter
}

// LogConfig ログ設定
type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig 予定の取得元
type CalendarConfig struct {
	Source         string
	ID             string
	MaxResults     int64
	FetchTimeout   time.Duration
	ICalFeedURL    string
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVPath     string
}

// SheetConfig 輪講スケジュールのスプレッドシート
type SheetConfig struct {
	SpreadsheetID string
	Range         string
}

// ReminderConfig 抽出・整形の設定
type ReminderConfig struct {
	Marker         string
	ScheduleMarker string
	DayPolicy      string
	DetailPolicy   string
	DefaultOffset  int
}

// NotifierConfig 送信先チャットの設定
type NotifierConfig struct {
	Kind                   string
	SlackBotToken          string
	SlackAPIURL            string
	LineChannelAccessToken string
	LineEndpoint           string
}

// BrainConfig 購読チャンネル・スナップショットの保存先
type BrainConfig struct {
	Backend       string
	ParamPrefix   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
}

// Load 環境に応じて設定を読み込み
func Load() (*Config, error) {
	// AWS Lambda環境かどうか判定
	if IsLambda() {
		return loadAWSConfig()
	}
	return loadLocalConfig()
}

// IsLambda Lambda上で実行されているか
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// loadLocalConfig ローカル開発環境用の設定読み込み
func loadLocalConfig() (*Config, error) {
	// .envファイルは存在する場合のみ読む
	_ = godotenv.Load()

	cfg := fromViper(newViper())
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAWSConfig AWS Lambda環境用の設定読み込み
func loadAWSConfig() (*Config, error) {
	ctx := context.TODO()
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}
	return loadWithParameterStore(ctx, ssm.NewFromConfig(awsConfig))
}

// loadWithParameterStore 環境変数に加えて機密情報を Parameter Store から読む
func loadWithParameterStore(ctx context.Context, client SSMParameterGetter) (*Config, error) {
	v := newViper()
	cfg := fromViper(v)
	cfg.ssmClient = client
	if cfg.Brain.Backend == "" {
		cfg.Brain.Backend = BrainSSM
	}

	if err := cfg.loadFromParameterStore(ctx, v); err != nil {
		return nil, fmt.Errorf("Parameter Storeからの設定読み込みに失敗しました: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("TIMEZONE", "Asia/Tokyo")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_SOURCE", SourceGoogle)
	v.SetDefault("CALENDAR_ID", "primary")
	v.SetDefault("CALENDAR_MAX_RESULTS", 10)
	v.SetDefault("FETCH_TIMEOUT", "15s")

	v.SetDefault("SHEET_RANGE", "schedule!B2:E")

	v.SetDefault("REMINDER_MARKER", "REMINDER")
	v.SetDefault("SCHEDULE_MARKER", "SPREADSHEET")
	v.SetDefault("REMINDER_DAY_POLICY", "exact-day")
	v.SetDefault("SCHEDULE_DETAIL_POLICY", "window")
	v.SetDefault("REMINDER_DEFAULT_OFFSET", 1)

	v.SetDefault("NOTIFIER", NotifierSlack)
	v.SetDefault("LINE_ENDPOINT", "https://api.line.me/v2/bot/message/push")

	v.SetDefault("REMINDER_CRON", "0 17 * * *")
	v.SetDefault("SHEET_CRON", "*/30 * * * *")
	v.SetDefault("METRICS_ADDR", ":9090")

	v.SetDefault("BRAIN_PARAM_PREFIX", "/calendar-reminder/brain")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SQLITE_PATH", "reminder.db")

	v.SetDefault("GOOGLE_CREDS_PARAM", "/calendar-reminder/google-creds")
	v.SetDefault("SLACK_BOT_TOKEN_PARAM", "/calendar-reminder/slack-bot-token")
	v.SetDefault("LINE_CHANNEL_ACCESS_TOKEN_PARAM", "/calendar-reminder/line-channel-access-token")
	v.SetDefault("CALDAV_PASSWORD_PARAM", "/calendar-reminder/caldav-password")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Env:      v.GetString("ENV"),
		Timezone: v.GetString("TIMEZONE"),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Calendar: CalendarConfig{
			Source:         strings.ToLower(v.GetString("CALENDAR_SOURCE")),
			ID:             v.GetString("CALENDAR_ID"),
			MaxResults:     v.GetInt64("CALENDAR_MAX_RESULTS"),
			FetchTimeout:   parseDuration(v.GetString("FETCH_TIMEOUT"), 15*time.Second),
			ICalFeedURL:    v.GetString("ICAL_FEED_URL"),
			CalDAVURL:      v.GetString("CALDAV_URL"),
			CalDAVUsername: v.GetString("CALDAV_USERNAME"),
			CalDAVPassword: v.GetString("CALDAV_PASSWORD"),
			CalDAVPath:     v.GetString("CALDAV_CALENDAR_PATH"),
		},
		Sheet: SheetConfig{
			SpreadsheetID: v.GetString("SPREADSHEET_ID"),
			Range:         v.GetString("SHEET_RANGE"),
		},
		Reminder: ReminderConfig{
			Marker:         v.GetString("REMINDER_MARKER"),
			ScheduleMarker: v.GetString("SCHEDULE_MARKER"),
			DayPolicy:      v.GetString("REMINDER_DAY_POLICY"),
			DetailPolicy:   v.GetString("SCHEDULE_DETAIL_POLICY"),
			DefaultOffset:  v.GetInt("REMINDER_DEFAULT_OFFSET"),
		},
		Notifier: NotifierConfig{
			Kind:                   strings.ToLower(v.GetString("NOTIFIER")),
			SlackBotToken:          v.GetString("SLACK_BOT_TOKEN"),
			SlackAPIURL:            v.GetString("SLACK_API_URL"),
			LineChannelAccessToken: v.GetString("LINE_CHANNEL_ACCESS_TOKEN"),
			LineEndpoint:           v.GetString("LINE_ENDPOINT"),
		},
		Brain: BrainConfig{
			Backend:       strings.ToLower(v.GetString("BRAIN_BACKEND")),
			ParamPrefix:   v.GetString("BRAIN_PARAM_PREFIX"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			SQLitePath:    v.GetString("SQLITE_PATH"),
		},
		ReminderCron:      v.GetString("REMINDER_CRON"),
		SheetCron:         v.GetString("SHEET_CRON"),
		MetricsAddr:       v.GetString("METRICS_ADDR"),
		GoogleCredentials: v.GetString("GOOGLE_CREDENTIALS"),
	}
}

// loadFromParameterStore Parameter Storeから機密情報を読み込み
func (c *Config) loadFromParameterStore(ctx context.Context, v *viper.Viper) error {
	if c.needsGoogle() {
		creds, err := c.getParameter(ctx, v.GetString("GOOGLE_CREDS_PARAM"), true)
		if err != nil {
			return fmt.Errorf("Google認証情報の取得に失敗しました: %w", err)
		}
		c.GoogleCredentials = creds
	}

	switch c.Notifier.Kind {
	case NotifierLINE:
		token, err := c.getParameter(ctx, v.GetString("LINE_CHANNEL_ACCESS_TOKEN_PARAM"), true)
		if err != nil {
			return fmt.Errorf("LINE Channel Access Tokenの取得に失敗しました: %w", err)
		}
		c.Notifier.LineChannelAccessToken = token
	default:
		token, err := c.getParameter(ctx, v.GetString("SLACK_BOT_TOKEN_PARAM"), true)
		if err != nil {
			return fmt.Errorf("Slack Bot Tokenの取得に失敗しました: %w", err)
		}
		c.Notifier.SlackBotToken = token
	}

	if c.Calendar.Source == SourceCalDAV && c.Calendar.CalDAVPassword == "" {
		password, err := c.getParameter(ctx, v.GetString("CALDAV_PASSWORD_PARAM"), true)
		if err != nil {
			return fmt.Errorf("CalDAVパスワードの取得に失敗しました: %w", err)
		}
		c.Calendar.CalDAVPassword = password
	}
	return nil
}

// getParameter Parameter Storeから指定されたパラメータを取得
func (c *Config) getParameter(ctx context.Context, paramName string, withDecryption bool) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(withDecryption),
	}

	result, err := c.ssmClient.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("パラメータ %s の取得に失敗しました: %w", paramName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("パラメータ %s が空です", paramName)
	}
	if strings.TrimSpace(*result.Parameter.Value) == "" {
		return "", fmt.Errorf("パラメータ %s が空の値です", paramName)
	}

	return *result.Parameter.Value, nil
}

// GoogleCredentialsJSON Google認証情報をJSONとして検証して返す
func (c *Config) GoogleCredentialsJSON() ([]byte, error) {
	raw := []byte(c.GoogleCredentials)
	var credentials map[string]interface{}
	if err := json.Unmarshal(raw, &credentials); err != nil {
		return nil, fmt.Errorf("Google認証情報のJSON解析に失敗しました: %w", err)
	}
	return raw, nil
}

// needsGoogle Google認証情報が必要な構成か
func (c *Config) needsGoogle() bool {
	return c.Calendar.Source == SourceGoogle || c.Sheet.SpreadsheetID != ""
}

// validate 必須設定項目の確認
func (c *Config) validate() error {
	var errs []error

	switch c.Calendar.Source {
	case SourceGoogle:
		if c.GoogleCredentials == "" {
			errs = append(errs, errors.New("GOOGLE_CREDENTIALS環境変数が設定されていません"))
		}
	case SourceICal:
		if c.Calendar.ICalFeedURL == "" {
			errs = append(errs, errors.New("ICAL_FEED_URL環境変数が設定されていません"))
		}
	case SourceCalDAV:
		if c.Calendar.CalDAVURL == "" || c.Calendar.CalDAVPath == "" {
			errs = append(errs, errors.New("CALDAV_URL / CALDAV_CALENDAR_PATH環境変数が設定されていません"))
		}
	default:
		errs = append(errs, fmt.Errorf("未知のCALENDAR_SOURCEです: %q", c.Calendar.Source))
	}

	if c.Sheet.SpreadsheetID != "" && c.GoogleCredentials == "" {
		errs = append(errs, errors.New("SPREADSHEET_IDを使うにはGOOGLE_CREDENTIALSが必要です"))
	}

	switch c.Notifier.Kind {
	case NotifierSlack:
		if c.Notifier.SlackBotToken == "" {
			errs = append(errs, errors.New("SLACK_BOT_TOKEN環境変数が設定されていません"))
		}
	case NotifierLINE:
		if c.Notifier.LineChannelAccessToken == "" {
			errs = append(errs, errors.New("LINE_CHANNEL_ACCESS_TOKEN環境変数が設定されていません"))
		}
	default:
		errs = append(errs, fmt.Errorf("未知のNOTIFIERです: %q", c.Notifier.Kind))
	}

	switch c.Brain.Backend {
	case "", BrainMemory, BrainSSM, BrainRedis, BrainSQLite:
	default:
		errs = append(errs, fmt.Errorf("未知のBRAIN_BACKENDです: %q", c.Brain.Backend))
	}

	return errors.Join(errs...)
}

// Location 設定されたタイムゾーン。読み込めなければ JST 固定
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("JST", 9*60*60)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
