package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitsniffer/internal/domain/model"
	domainsvc "profitsniffer/internal/domain/service"
)

type botServer struct {
	mu      sync.Mutex
	sent    []map[string]any
	updates []Update
	polled  chan struct{}
}

func (b *botServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch {
		case strings.HasSuffix(r.URL.Path, "/botTOKEN/sendMessage"):
			b.mu.Lock()
			b.sent = append(b.sent, body)
			b.mu.Unlock()
			if body["chat_id"] == "blocked" {
				_, _ = w.Write([]byte(`{"ok": false, "description": "Forbidden: bot was blocked by the user"}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok": true, "result": {}}`))
		case strings.HasSuffix(r.URL.Path, "/botTOKEN/getUpdates"):
			b.mu.Lock()
			ups := b.updates
			b.updates = nil
			b.mu.Unlock()
			res, _ := json.Marshal(ups)
			_, _ = w.Write([]byte(`{"ok": true, "result": ` + string(res) + `}`))
			if len(ups) == 0 {
				select {
				case b.polled <- struct{}{}:
				default:
				}
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

type fakeRegistrar struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeRegistrar) Register(ctx context.Context, id string) (*model.Subscriber, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return &model.Subscriber{ID: id}, true, nil
}

func TestNotify(t *testing.T) {
	bs := &botServer{}
	srv := httptest.NewServer(bs.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL, "TOKEN", time.Second)
	require.NoError(t, c.Notify(context.Background(), "1001", "hello"))
	assert.Error(t, c.Notify(context.Background(), "blocked", "hello"))

	require.Len(t, bs.sent, 2)
	assert.Equal(t, "1001", bs.sent[0]["chat_id"])
	assert.Equal(t, "hello", bs.sent[0]["text"])
}

func TestPollerRegistersOnStart(t *testing.T) {
	start := func(id, chat int64, text string) Update {
		m := &Message{MessageID: id, Text: text}
		m.Chat.ID = chat
		return Update{UpdateID: id, Message: m}
	}
	bs := &botServer{
		polled: make(chan struct{}, 1),
		updates: []Update{
			start(1, 555, "/start"),
			start(2, 556, "hello there"),
			start(3, 557, "/start@ProfitSnifferBot ref"),
			{UpdateID: 4},
		},
	}
	srv := httptest.NewServer(bs.handler(t))
	defer srv.Close()

	reg := &fakeRegistrar{}
	p := NewPoller(NewClient(srv.URL, "TOKEN", time.Second), reg, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-bs.polled:
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not drain updates")
	}
	cancel()
	<-done

	assert.Equal(t, []string{"555", "557"}, reg.ids)
	bs.mu.Lock()
	defer bs.mu.Unlock()
	require.Len(t, bs.sent, 2)
	assert.Equal(t, domainsvc.WelcomeMessage, bs.sent[0]["text"])
}

func TestIsStart(t *testing.T) {
	assert.True(t, isStart("/start"))
	assert.True(t, isStart("  /start abc"))
	assert.True(t, isStart("/start@Bot"))
	assert.False(t, isStart("/stop"))
	assert.False(t, isStart("start"))
}
