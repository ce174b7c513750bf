package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

// CalendarQuerier CalDAV の calendar-query を抽象化（テストで差し替え可能）
type CalendarQuerier interface {
	QueryCalendar(ctx context.Context, path string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
}

// CalDAVRepository CalDAVサーバーのカレンダーを読むCalendarRepositoryの実装
type CalDAVRepository struct {
	client         CalendarQuerier
	calendarPath   string
	timezone       *time.Location
	maxOccurrences int
	logger         *zap.Logger
}

// basicAuthTransport リクエストに Basic 認証を付ける
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// NewCalDAVRepository サーバーURLと認証情報からリポジトリを作成
func NewCalDAVRepository(endpoint, username, password, calendarPath string, loc *time.Location, logger *zap.Logger) (*CalDAVRepository, error) {
	if calendarPath == "" {
		return nil, errors.New("CalDAVのカレンダーパスが設定されていません")
	}
	httpClient := &http.Client{
		Transport: &basicAuthTransport{username: username, password: password},
		Timeout:   30 * time.Second,
	}
	client, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("CalDAVクライアントの作成に失敗しました: %w", err)
	}
	return NewCalDAVRepositoryWithClient(client, calendarPath, loc, logger), nil
}

// NewCalDAVRepositoryWithClient 任意の CalendarQuerier でリポジトリを作成
func NewCalDAVRepositoryWithClient(client CalendarQuerier, calendarPath string, loc *time.Location, logger *zap.Logger) *CalDAVRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalDAVRepository{
		client:         client,
		calendarPath:   calendarPath,
		timezone:       loc,
		maxOccurrences: defaultMaxOccurrences,
		logger:         logger,
	}
}

// GetEvents 指定された日に重なる予定を取得
func (r *CalDAVRepository) GetEvents(ctx context.Context, targetDate time.Time) ([]domain.Event, error) {
	start, end := dayRange(targetDate, r.timezone)

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start.UTC(),
				End:   end.UTC(),
			}},
		},
	}

	objects, err := r.client.QueryCalendar(ctx, r.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("%w: CalDAVの問い合わせに失敗しました: %w", domain.ErrSourceUnavailable, err)
	}

	var raws []rawEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			raw, err := r.parseComponent(comp)
			if err != nil {
				r.logger.Warn("VEVENTの解析をスキップしました", zap.String("path", obj.Path), zap.Error(err))
				continue
			}
			raws = append(raws, raw)
		}
	}

	result, err := expandOccurrences(raws, start, end, r.timezone, r.maxOccurrences)
	if err != nil {
		return nil, err
	}
	if len(result.Truncated) > 0 {
		r.logger.Warn("繰り返しの展開が上限に達しました", zap.Strings("uids", result.Truncated))
	}

	events := make([]domain.Event, 0, len(result.Events))
	for _, ev := range result.Events {
		if err := validateEvent(ev); err != nil {
			r.logger.Warn("イベントの変換をスキップしました", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (r *CalDAVRepository) parseComponent(comp *ical.Component) (rawEvent, error) {
	var out rawEvent

	uid := comp.Props.Get(ical.PropUID)
	if uid == nil || uid.Value == "" {
		return out, errors.New("UIDがありません")
	}
	out.UID = uid.Value
	out.Summary = textProp(comp, ical.PropSummary)
	out.Description = textProp(comp, ical.PropDescription)
	out.Location = textProp(comp, ical.PropLocation)

	dtStart := comp.Props.Get(ical.PropDateTimeStart)
	if dtStart == nil {
		return out, fmt.Errorf("%s: DTSTARTがありません", out.UID)
	}
	start, err := dtStart.DateTime(r.timezone)
	if err != nil {
		return out, fmt.Errorf("%s: DTSTARTの解析に失敗しました: %w", out.UID, err)
	}
	out.Start = start
	out.AllDay = isDateProp(dtStart)

	if dtEnd := comp.Props.Get(ical.PropDateTimeEnd); dtEnd != nil {
		if out.End, err = dtEnd.DateTime(r.timezone); err != nil {
			return out, fmt.Errorf("%s: DTENDの解析に失敗しました: %w", out.UID, err)
		}
	} else if out.AllDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}

	if rule := comp.Props.Get(ical.PropRecurrenceRule); rule != nil {
		out.RRule = rule.Value
	}

	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		for _, part := range strings.Split(p.Value, ",") {
			single := p
			single.Value = strings.TrimSpace(part)
			if single.Value == "" {
				continue
			}
			if t, err := single.DateTime(r.timezone); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := comp.Props.Get(ical.PropRecurrenceID); rid != nil {
		if t, err := rid.DateTime(r.timezone); err == nil {
			out.RecurrenceID = &t
		}
	}
	return out, nil
}

func textProp(comp *ical.Component, name string) string {
	if p := comp.Props.Get(name); p != nil {
		if s, err := p.Text(); err == nil {
			return s
		}
		return p.Value
	}
	return ""
}

func isDateProp(p *ical.Prop) bool {
	if p.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
