package robot

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkbookName is the canonical filename every filed report gets, regardless
// of what EDGAR called the download.
const WorkbookName = "Financial_Report.xlsx"

// Place files a downloaded workbook under its ticker directory as
// <downloadsDir>/<ticker>/Financial_Report.xlsx. Directory creation is
// idempotent and an existing workbook is replaced, never duplicated.
func Place(downloadsDir, ticker, src string) (string, error) {
	dir := filepath.Join(downloadsDir, ticker)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create ticker dir %s: %w", dir, err)
	}
	dst := filepath.Join(dir, WorkbookName)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("file workbook for %s: %w", ticker, err)
	}
	return dst, nil
}
