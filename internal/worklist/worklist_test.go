package worklist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseTickers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		csv     string
		column  string
		want    []string
		wantErr string
	}{
		{
			name:   "projects the ticker column in order",
			csv:    "Company Name,Company Ticker\nApple Inc.,AAPL\nMicrosoft,MSFT\n",
			column: "Company Ticker",
			want:   []string{"AAPL", "MSFT"},
		},
		{
			name:   "preserves duplicates",
			csv:    "Company Ticker\nAAPL\nAAPL\n",
			column: "Company Ticker",
			want:   []string{"AAPL", "AAPL"},
		},
		{
			name:   "trims whitespace and defaults the column",
			csv:    " Company Ticker ,Notes\n  AAPL , x\n",
			column: "",
			want:   []string{"AAPL"},
		},
		{
			name:    "missing column",
			csv:     "Symbol\nAAPL\n",
			column:  "Company Ticker",
			wantErr: `no "Company Ticker" column`,
		},
		{
			name:    "empty cell",
			csv:     "Company Ticker\nAAPL\n\"\"\n",
			column:  "Company Ticker",
			wantErr: "row 3 has an empty",
		},
		{
			name:    "empty input",
			csv:     "",
			column:  "Company Ticker",
			wantErr: "worklist is empty",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTickers(strings.NewReader(tt.csv), tt.column)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileSourceRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tickers.csv")
	require.NoError(t, os.WriteFile(path, []byte("Company Ticker\nAAPL\nMSFT\n"), 0o600))

	src := NewFileSource(path, "Company Ticker", zap.NewNop())
	tickers, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
}

func TestFileSourceMissingFile(t *testing.T) {
	t.Parallel()

	src := NewFileSource(filepath.Join(t.TempDir(), "absent.csv"), "", zap.NewNop())
	_, err := src.Read(context.Background())
	require.Error(t, err)
}

func TestSheetSourceRead(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spreadsheets/d/sheet-123/export", r.URL.Path)
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		assert.Equal(t, "edgarbot-test", r.Header.Get("user-agent"))
		_, _ = w.Write([]byte("Company Ticker\nAAPL\nMSFT\n"))
	}))
	defer srv.Close()

	src := NewSheetSource(SheetConfig{
		SheetID:   "sheet-123",
		BaseURL:   srv.URL,
		Column:    "Company Ticker",
		UserAgent: "edgarbot-test",
	}, zap.NewNop())

	tickers, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
}

func TestSheetSourceHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewSheetSource(SheetConfig{SheetID: "sheet-123", BaseURL: srv.URL}, zap.NewNop())
	_, err := src.Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
