package gateway

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

// GoogleSheetsRepository Google Sheets APIで輪講スケジュールの行を読むSheetRepositoryの実装
type GoogleSheetsRepository struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewGoogleSheetsRepository サービスアカウントの認証情報からリポジトリを作成
func NewGoogleSheetsRepository(ctx context.Context, credentialsJSON []byte, spreadsheetID, readRange string, opts ...option.ClientOption) (*GoogleSheetsRepository, error) {
	if len(credentialsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, sheets.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("google認証情報の読み込みに失敗しました: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google Sheets APIサービスの作成に失敗しました: %w", err)
	}

	return &GoogleSheetsRepository{
		service:       service,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}, nil
}

// GetScheduleRows 範囲内の行を文字列として返す
func (r *GoogleSheetsRepository) GetScheduleRows(ctx context.Context) ([][]string, error) {
	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, r.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: スプレッドシートの取得に失敗しました: %w", domain.ErrSourceUnavailable, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, values := range resp.Values {
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
