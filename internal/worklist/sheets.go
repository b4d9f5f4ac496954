package worklist

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// defaultSheetsBaseURL serves Google Sheets CSV exports.
const defaultSheetsBaseURL = "https://docs.google.com"

// SheetConfig parameterizes a Google Sheets worklist.
type SheetConfig struct {
	SheetID   string
	BaseURL   string
	Column    string
	UserAgent string
}

// SheetSource fetches tickers from a Google Sheet's CSV export, keeping the
// business input editable without redeploying the robot.
type SheetSource struct {
	client  *resty.Client
	sheetID string
	column  string
	logger  *zap.Logger
}

// NewSheetSource builds a source for the sheet in cfg.
func NewSheetSource(cfg SheetConfig, logger *zap.Logger) *SheetSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSheetsBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	if cfg.UserAgent != "" {
		client.SetHeader("user-agent", cfg.UserAgent)
	}

	return &SheetSource{
		client:  client,
		sheetID: cfg.SheetID,
		column:  cfg.Column,
		logger:  logger,
	}
}

// Read downloads the sheet as CSV and returns its tickers in order.
func (s *SheetSource) Read(ctx context.Context) ([]string, error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("format", "csv").
		Get(fmt.Sprintf("/spreadsheets/d/%s/export", s.sheetID))
	if err != nil {
		return nil, fmt.Errorf("fetch sheet %s: %w", s.sheetID, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch sheet %s: %s", s.sheetID, res.Status())
	}

	tickers, err := ParseTickers(bytes.NewReader(res.Body()), s.column)
	if err != nil {
		return nil, fmt.Errorf("parse sheet %s: %w", s.sheetID, err)
	}
	s.logger.Info("worklist loaded",
		zap.String("sheet_id", s.sheetID),
		zap.Int("tickers", len(tickers)),
	)
	return tickers, nil
}
