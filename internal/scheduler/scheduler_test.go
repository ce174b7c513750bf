package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/reminder"
)

func TestAdd(t *testing.T) {
	s := New(reminder.JST, nil)

	require.NoError(t, s.Add("reminder", "0 10 * * *", func(context.Context) {}))
	require.NoError(t, s.Add("sheet", "*/30 * * * *", func(context.Context) {}))
	require.NoError(t, s.Add("disabled", "", func(context.Context) {}))

	assert.Equal(t, 2, s.Len())
}

func TestAdd_InvalidSpec(t *testing.T) {
	s := New(reminder.JST, nil)

	err := s.Add("reminder", "every morning", func(context.Context) {})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ジョブ reminder の登録に失敗しました")
	assert.Equal(t, 0, s.Len())
}

func TestWrap_PassesSchedulerContext(t *testing.T) {
	s := New(reminder.JST, nil)

	var got context.Context
	s.wrap("reminder", func(ctx context.Context) { got = ctx })()
	require.NotNil(t, got)
	assert.NoError(t, got.Err())

	s.Stop()
	assert.ErrorIs(t, got.Err(), context.Canceled)
}
