package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jenkinstray/jenkinstray/internal/config"
	"github.com/jenkinstray/jenkinstray/internal/wsclient"
)

func newJenkinsRelay(t *testing.T, frames ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestRuntime(t *testing.T, cfg *config.AppConfig) (*Runtime, *collectingNotificationSender, *collectingDialogs) {
	t.Helper()

	paths, err := PathsIn(t.TempDir())
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if cfg != nil {
		if err := config.Save(paths.ConfigFile, cfg); err != nil {
			t.Fatalf("write config fixture: %v", err)
		}
	}

	sender := newCollectingNotificationSender()
	dialogs := &collectingDialogs{}
	rt, err := Initialize(context.Background(), Dependencies{Paths: &paths, Sender: sender, Dialogs: dialogs})
	if err != nil {
		t.Fatalf("initialize runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	return rt, sender, dialogs
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRuntimeReceivesJobResultEndToEnd(t *testing.T) {
	target := newJenkinsRelay(t, "hello", `{"project":"sample","number":5,"status":"FAILURE","result":"FAILURE"}`)
	cfg := config.Default()
	cfg.Notify.TargetURI = target
	rt, sender, dialogs := newTestRuntime(t, &cfg)

	if err := rt.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "history entry", func() bool { return rt.History.Len() == 1 })

	entry := rt.History.Items()[0]
	if entry.Project != "sample" || entry.BuildNumber != 5 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	waitFor(t, "persisted entry", func() bool {
		items, err := rt.JobResultRepo.ListRecent(context.Background(), 10)
		return err == nil && len(items) == 1 && items[0].ID == entry.ID
	})

	got := sender.waitForCount(t, 2)
	titles := []string{got[0].Title, got[1].Title}
	if !(titles[0] == notificationTitleConnected || titles[1] == notificationTitleConnected) {
		t.Fatalf("expected a connected notification, got %v", titles)
	}
	if !(titles[0] == "sample #5" || titles[1] == "sample #5") {
		t.Fatalf("expected a job notification, got %v", titles)
	}
	if len(dialogs.errors()) != 0 {
		t.Fatalf("expected no error dialogs, got %v", dialogs.errors())
	}

	status, known := rt.CurrentConnStatus()
	if !known || status.State != wsclient.StateOpen {
		t.Fatalf("expected open status, got %+v", status)
	}

	if err := rt.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if rt.Client.State() != wsclient.StateClosed {
		t.Fatalf("expected closed client, got %s", rt.Client.State())
	}
}

func TestRuntimeClearHistory(t *testing.T) {
	target := newJenkinsRelay(t, `{"project":"sample","number":1,"status":"SUCCESS","result":"SUCCESS"}`)
	cfg := config.Default()
	cfg.Notify.TargetURI = target
	rt, _, _ := newTestRuntime(t, &cfg)

	if err := rt.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "persisted entry", func() bool {
		items, err := rt.JobResultRepo.ListRecent(context.Background(), 10)
		return err == nil && len(items) == 1
	})

	if err := rt.ClearHistory(); err != nil {
		t.Fatalf("clear history: %v", err)
	}
	if rt.History.Len() != 0 {
		t.Fatalf("expected empty in-memory history")
	}
	items, err := rt.JobResultRepo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty stored history, got %d", len(items))
	}
}

func TestRuntimeMissingConfigWritesDefaults(t *testing.T) {
	rt, _, dialogs := newTestRuntime(t, nil)

	if _, err := os.Stat(rt.Paths.ConfigFile); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
	if len(dialogs.errors()) != 0 {
		t.Fatalf("expected no dialog for a first run, got %v", dialogs.errors())
	}
	if rt.ConfigStore.Current().String() != config.Default().String() {
		t.Fatalf("expected defaults in store")
	}
}

func TestRuntimeInvalidConfigShowsDialog(t *testing.T) {
	paths, err := PathsIn(t.TempDir())
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if err := os.WriteFile(paths.ConfigFile, []byte("<ApplicationConfiguration>"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	dialogs := &collectingDialogs{}
	rt, err := Initialize(context.Background(), Dependencies{Paths: &paths, Sender: newCollectingNotificationSender(), Dialogs: dialogs})
	if err != nil {
		t.Fatalf("initialize runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	if len(dialogs.errors()) != 1 {
		t.Fatalf("expected one configuration error dialog, got %v", dialogs.errors())
	}
	if rt.ConfigStore.Current().String() != config.Default().String() {
		t.Fatalf("expected defaults after failed load")
	}
}

func TestRuntimeSaveConfig(t *testing.T) {
	rt, _, _ := newTestRuntime(t, nil)

	invalid := rt.ConfigStore.Current()
	invalid.Notify.DisplayHistoryCount = 10
	var verr *config.VerificationError
	if err := rt.SaveConfig(invalid); !errors.As(err, &verr) {
		t.Fatalf("expected verification error, got %v", err)
	}

	next := rt.ConfigStore.Current()
	next.Notify.DisplayHistoryCount = 30
	next.Notify.IsNotifySuccess = false
	if err := rt.SaveConfig(next); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if rt.History.Limit() != 30 {
		t.Fatalf("expected history limit 30, got %d", rt.History.Limit())
	}

	reloaded, err := config.Load(rt.Paths.ConfigFile)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Notify.IsNotifySuccess {
		t.Fatalf("expected saved IsNotifySuccess=false")
	}
}
