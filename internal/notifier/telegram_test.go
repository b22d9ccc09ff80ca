package notifier

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"MarketPulse/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	okMessage = `{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"ok"}}`
	okPhoto   = `{"ok":true,"result":{"message_id":2,"date":1700000000,"chat":{"id":42,"type":"private"},"caption":"c","photo":[{"file_id":"small","file_unique_id":"s","width":90,"height":45},{"file_id":"big","file_unique_id":"b","width":800,"height":400}]}}`
	rejected  = `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`
)

type fakeTelegram struct {
	server *httptest.Server
	hits   int32
	mu     sync.Mutex
	paths  []string
	bodies []string
	reply  func(method string) string
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{reply: func(method string) string {
		if method == "sendPhoto" {
			return okPhoto
		}
		return okMessage
	}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.hits, 1)
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.bodies = append(f.bodies, string(body))
		f.mu.Unlock()
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.reply(method)))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTelegram) requests() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...), append([]string(nil), f.bodies...)
}

func writeChart(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake image"), 0o644))
	return path
}

func TestTelegramNotifier_Unconfigured(t *testing.T) {
	fake := newFakeTelegram(t)
	for _, cfg := range []config.Telegram{
		{},
		{BotToken: "token"},
		{ChatID: "42"},
	} {
		n, err := NewTelegramNotifier(cfg, "", fake.server.URL)
		require.NoError(t, err)
		assert.False(t, n.Enabled())
		assert.NoError(t, n.SendText("hello"))
		assert.NoError(t, n.SendPhoto("caption", "/does/not/exist.png"))
		n.Close()
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&fake.hits))
}

func TestTelegramNotifier_SendText(t *testing.T) {
	fake := newFakeTelegram(t)
	n, err := NewTelegramNotifier(config.Telegram{BotToken: "123:abc", ChatID: "42"}, "", fake.server.URL)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.SendText("*hello*"))
	paths, bodies := fake.requests()
	require.Len(t, paths, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", paths[0])
	assert.Contains(t, bodies[0], `"chat_id":"42"`)
	assert.Contains(t, bodies[0], `"parse_mode":"Markdown"`)
	assert.Contains(t, bodies[0], "*hello*")
}

func TestTelegramNotifier_SendPhoto(t *testing.T) {
	fake := newFakeTelegram(t)
	n, err := NewTelegramNotifier(config.Telegram{BotToken: "123:abc", ChatID: "42"}, "", fake.server.URL)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.SendPhoto("📊 NIFTY Analysis", writeChart(t)))
	paths, bodies := fake.requests()
	require.Len(t, paths, 1)
	assert.Equal(t, "/bot123:abc/sendPhoto", paths[0])
	assert.Contains(t, bodies[0], "📊 NIFTY Analysis")
	assert.Contains(t, bodies[0], "fake image")
}

func TestTelegramNotifier_Rejected(t *testing.T) {
	fake := newFakeTelegram(t)
	fake.reply = func(string) string { return rejected }
	n, err := NewTelegramNotifier(config.Telegram{BotToken: "123:abc", ChatID: "42"}, "", fake.server.URL)
	require.NoError(t, err)

	assert.Error(t, n.SendText("hello"))
	assert.Error(t, n.SendPhoto("caption", writeChart(t)))
	// one request each, no retries
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.hits))
}

func TestTelegramNotifier_MissingFile(t *testing.T) {
	fake := newFakeTelegram(t)
	n, err := NewTelegramNotifier(config.Telegram{BotToken: "123:abc", ChatID: "42"}, "", fake.server.URL)
	require.NoError(t, err)

	assert.Error(t, n.SendPhoto("caption", filepath.Join(t.TempDir(), "gone.png")))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "📊 NIFTY Analysis", PhotoCaption("NIFTY"))

	msg := FormatStartup("NIFTY_50", 5*time.Minute)
	assert.Contains(t, msg, "Bot Started")
	assert.Contains(t, msg, `NIFTY\_50`)
	assert.Contains(t, msg, "5m0s")
}
