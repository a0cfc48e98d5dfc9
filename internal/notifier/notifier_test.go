package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBusObject records Notify calls; unimplemented BusObject methods panic.
type fakeBusObject struct {
	dbus.BusObject

	method string
	args   []interface{}
	err    error
}

func (f *fakeBusObject) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	f.method = method
	f.args = args
	return &dbus.Call{Method: method, Args: args, Err: f.err, Body: []interface{}{uint32(1)}}
}

func TestDesktopNotify(t *testing.T) {
	obj := &fakeBusObject{}
	d := NewDesktop("weenotify", "dialog-information")
	d.obj = obj

	err := d.Notify(context.Background(), Notification{Summary: "#dev", Body: "hi", Duration: 5 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, "org.freedesktop.Notifications.Notify", obj.method)
	require.Len(t, obj.args, 8)
	assert.Equal(t, "weenotify", obj.args[0])
	assert.Equal(t, uint32(0), obj.args[1])
	assert.Equal(t, "dialog-information", obj.args[2])
	assert.Equal(t, "#dev", obj.args[3])
	assert.Equal(t, "hi", obj.args[4])
	assert.Equal(t, int32(5000), obj.args[7])
}

func TestDesktopNotifyError(t *testing.T) {
	d := NewDesktop("weenotify", "")
	d.obj = &fakeBusObject{err: errors.New("no daemon")}

	err := d.Notify(context.Background(), Notification{Summary: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no daemon")
}

func TestDesktopCloseWithoutConnection(t *testing.T) {
	assert.NoError(t, NewDesktop("weenotify", "").Close())
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
	return r.err
}

func TestMultiDeliversToAllSinks(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("sink down")}
	healthy := &recordingNotifier{}

	err := Multi{failing, healthy}.Notify(context.Background(), Notification{Summary: "s", Body: "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Len(t, failing.calls, 1)
	assert.Len(t, healthy.calls, 1)
}

func TestMultiEmpty(t *testing.T) {
	assert.NoError(t, Multi{}.Notify(context.Background(), Notification{}))
}

func TestTelegramNotify(t *testing.T) {
	type sent struct {
		path string
		body map[string]any
	}
	var (
		mu   sync.Mutex
		reqs []sent
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		reqs = append(reqs, sent{path: r.URL.Path, body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("token", []string{"1", "2"})
	tg.baseURL = srv.URL

	err := tg.Notify(context.Background(), Notification{Summary: "<alice>", Body: "a & b"})
	require.NoError(t, err)

	require.Len(t, reqs, 2)
	assert.Equal(t, "/bottoken/sendMessage", reqs[0].path)
	assert.Equal(t, "1", reqs[0].body["chat_id"])
	assert.Equal(t, "2", reqs[1].body["chat_id"])
	assert.Equal(t, "<b>&lt;alice&gt;</b>\na &amp; b", reqs[0].body["text"])
	assert.Equal(t, "HTML", reqs[0].body["parse_mode"])
}

func TestTelegramNotifyStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tg := NewTelegram("bad", []string{"1"})
	tg.baseURL = srv.URL

	err := tg.Notify(context.Background(), Notification{Summary: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
