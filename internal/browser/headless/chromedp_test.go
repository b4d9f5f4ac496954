package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/browser"
)

const searchPage = `<!doctype html><html><body>
<form onsubmit="document.getElementById('echo').textContent = document.getElementById('cik').value; return false;">
  <input id="cik" value="seed">
  <input id="type">
</form>
<div id="echo"></div>
<a class="xbrlviewer" href="#" onclick="document.getElementById('echo').textContent='clicked'; return false;">View Excel Document</a>
</body></html>`

func newTestSession(t *testing.T, driverLog string) *Session {
	t.Helper()
	sess, err := New(Config{
		UserAgent:  "TestAgent",
		Headless:   true,
		NavTimeout: 10 * time.Second,
		DriverLog:  driverLog,
	}, zap.NewNop())
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestSessionNavigateFindAndAct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, searchPage)
	}))
	defer srv.Close()

	logPath := filepath.Join(t.TempDir(), "chrome.log")
	sess := newTestSession(t, logPath)
	ctx := context.Background()

	if err := sess.Navigate(ctx, srv.URL); err != nil {
		t.Skipf("navigate failed: %v", err)
	}

	inputs, err := sess.FindByTagAndAttr(ctx, "input", "id", "cik", 5*time.Second)
	if err != nil {
		t.Fatalf("FindByTagAndAttr(input#cik) error = %v", err)
	}
	if len(inputs) == 0 {
		t.Fatal("expected at least one cik input")
	}
	if err := inputs[0].Clear(ctx); err != nil {
		t.Fatalf("Clear error = %v", err)
	}
	if err := inputs[0].SendKeysAndSubmit(ctx, "AAPL"); err != nil {
		t.Fatalf("SendKeysAndSubmit error = %v", err)
	}

	echoes, err := sess.FindByTagAndAttr(ctx, "div", "id", "echo", 5*time.Second)
	if err != nil {
		t.Fatalf("FindByTagAndAttr(div#echo) error = %v", err)
	}
	text, err := echoes[0].Text(ctx)
	if err != nil {
		t.Fatalf("Text error = %v", err)
	}
	if text != "AAPL" {
		t.Fatalf("expected submitted value to echo back, got %q", text)
	}

	links, err := sess.FindByTagAndAttr(ctx, "a", "class", "xbrlviewer", 5*time.Second)
	if err != nil {
		t.Fatalf("FindByTagAndAttr(a.xbrlviewer) error = %v", err)
	}
	linkText, err := links[0].Text(ctx)
	if err != nil {
		t.Fatalf("Text error = %v", err)
	}
	if linkText != "View Excel Document" {
		t.Fatalf("expected excel link text, got %q", linkText)
	}
	if err := links[0].Click(ctx); err != nil {
		t.Fatalf("Click error = %v", err)
	}

	if _, err := sess.FindByTagAndAttr(ctx, "table", "id", "missing", 500*time.Millisecond); !errors.Is(err, browser.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound for missing element, got %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close error = %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected driver log to exist: %v", err)
	}
}

func TestSessionDownloadRouting(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body><a id="report" href="/Financial_Report.xlsx">View Excel Document</a></body></html>`)
	})
	mux.HandleFunc("/Financial_Report.xlsx", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="Financial_Report.xlsx"`)
		_, _ = w.Write([]byte("workbook-bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess := newTestSession(t, "")
	ctx := context.Background()

	downloadDir := t.TempDir()
	if err := sess.SetDownloadDir(ctx, downloadDir); err != nil {
		t.Fatalf("SetDownloadDir error = %v", err)
	}
	if err := sess.Navigate(ctx, srv.URL); err != nil {
		t.Skipf("navigate failed: %v", err)
	}
	links, err := sess.FindByTagAndAttr(ctx, "a", "id", "report", 5*time.Second)
	if err != nil {
		t.Fatalf("FindByTagAndAttr error = %v", err)
	}
	if err := links[0].Click(ctx); err != nil {
		t.Fatalf("Click error = %v", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for {
		matches, globErr := filepath.Glob(filepath.Join(downloadDir, "*.xlsx"))
		if globErr != nil {
			t.Fatalf("glob error = %v", globErr)
		}
		if len(matches) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Skip("download did not materialize; browser sandbox likely forbids downloads")
		}
		time.Sleep(200 * time.Millisecond)
	}
}
