package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

const maxFeedBytes = 10 << 20

// ICalFeedRepository 公開iCalフィード(.ics)を読むCalendarRepositoryの実装
type ICalFeedRepository struct {
	client         *http.Client
	url            string
	timezone       *time.Location
	maxOccurrences int
	logger         *zap.Logger

	mu           sync.Mutex
	etag         string
	lastModified string
	cachedBody   []byte
}

// NewICalFeedRepository フィードURLからリポジトリを作成
func NewICalFeedRepository(url string, client *http.Client, loc *time.Location, logger *zap.Logger) *ICalFeedRepository {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ICalFeedRepository{
		client:         client,
		url:            url,
		timezone:       loc,
		maxOccurrences: defaultMaxOccurrences,
		logger:         logger,
	}
}

// GetEvents 指定された日に重なる予定を、繰り返しを展開して返す
func (r *ICalFeedRepository) GetEvents(ctx context.Context, targetDate time.Time) ([]domain.Event, error) {
	body, err := r.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: iCalフィードの取得に失敗しました: %w", domain.ErrSourceUnavailable, err)
	}

	raws, err := r.parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: iCalフィードの解析に失敗しました: %w", domain.ErrSourceUnavailable, err)
	}

	start, end := dayRange(targetDate, r.timezone)
	result, err := expandOccurrences(raws, start, end, r.timezone, r.maxOccurrences)
	if err != nil {
		return nil, err
	}
	if len(result.Truncated) > 0 {
		r.logger.Warn("繰り返しの展開が上限に達しました", zap.Strings("uids", result.Truncated), zap.Int("cap", r.maxOccurrences))
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

// fetch ETag / Last-Modified を使って取得し、304 なら前回の本文を使う
func (r *ICalFeedRepository) fetch(ctx context.Context) ([]byte, error) {
	if r.url == "" {
		return nil, errors.New("フィードURLが設定されていません")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.etag != "" {
		req.Header.Set("If-None-Match", r.etag)
	}
	if r.lastModified != "" {
		req.Header.Set("If-Modified-Since", r.lastModified)
	}
	r.mu.Unlock()

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.etag = resp.Header.Get("ETag")
		r.lastModified = resp.Header.Get("Last-Modified")
		r.cachedBody = body
		r.mu.Unlock()
		return body, nil
	case http.StatusNotModified:
		r.mu.Lock()
		defer r.mu.Unlock()
		if len(r.cachedBody) == 0 {
			return nil, errors.New("304 Not Modified ですがキャッシュがありません")
		}
		r.logger.Debug("iCalフィードは更新されていません")
		return r.cachedBody, nil
	default:
		return nil, fmt.Errorf("予期しないステータスです: %s", resp.Status)
	}
}

func (r *ICalFeedRepository) parse(body []byte) ([]rawEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("iCalフィードが空です")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	raws := make([]rawEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		raw, err := r.parseVEvent(ve)
		if err != nil {
			r.logger.Warn("VEVENTの解析をスキップしました", zap.Error(err))
			continue
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func (r *ICalFeedRepository) parseVEvent(ve *ical.VEvent) (rawEvent, error) {
	var out rawEvent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("UIDがありません")
	}
	out.UID = uid.Value
	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("%s: DTSTARTがありません", out.UID)
	}
	start, allDay, err := icsTime(dtStart.Value, dtStart.ICalParameters, r.timezone)
	if err != nil {
		return out, fmt.Errorf("%s: DTSTARTの解析に失敗しました: %w", out.UID, err)
	}
	out.Start, out.AllDay = start, allDay

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := icsTime(dtEnd.Value, dtEnd.ICalParameters, r.timezone)
		if err != nil {
			return out, fmt.Errorf("%s: DTENDの解析に失敗しました: %w", out.UID, err)
		}
		out.End = end
	} else if allDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}

	out.RRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := icsTime(part, p.ICalParameters, r.timezone); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); rid != nil {
		if t, _, err := icsTime(rid.Value, rid.ICalParameters, r.timezone); err == nil {
			out.RecurrenceID = &t
		}
	}
	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// icsTime DATE / UTC / TZID付き / floating の各形式を読む。
// DATE と floating は loc の時刻として扱う。
func icsTime(value string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, errors.New("値が空です")
	}

	isDate := !strings.Contains(value, "T")
	if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}
	if isDate {
		t, err := time.ParseInLocation("20060102", value, loc)
		return t, true, err
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		return t, false, err
	}

	in := loc
	if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
		if tz, err := time.LoadLocation(tzs[0]); err == nil {
			in = tz
		}
	}
	t, err := time.ParseInLocation("20060102T150405", value, in)
	return t, false, err
}
