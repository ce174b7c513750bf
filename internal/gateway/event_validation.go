package gateway

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

var eventValidator = validator.New()

// validateEvent 必須項目（タイトル・開始・終了）と終了>=開始を検証する
func validateEvent(ev domain.Event) error {
	if err := eventValidator.Struct(ev); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidEvent, ev.ID, err)
	}
	return nil
}

// dayRange 対象日の [00:00, 翌日00:00) を loc で返す
func dayRange(targetDate time.Time, loc *time.Location) (time.Time, time.Time) {
	d := targetDate.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
