package kvbridge

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
)

func newBridge(t *testing.T, hub *kv.Hub) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(Handler(hub, []string{"*"}, nil))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func nextChange(t *testing.T, ch <-chan kv.Change) kv.Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		if !ok {
			t.Fatal("watch closed")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}
	return kv.Change{}
}

func TestRemoteGetSet(t *testing.T) {
	ctx := context.Background()
	hub := kv.Memory()
	_, url := newBridge(t, hub)
	remote := dial(t, url)

	if _, ok, err := remote.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing = (%v, %v)", ok, err)
	}
	if err := remote.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := remote.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Errorf("Get = (%q, %v, %v)", v, ok, err)
	}
	if hub.Snapshot()["k"] != "v" {
		t.Error("remote write not visible in hub")
	}
}

func TestLocalWriteReachesRemoteWatcher(t *testing.T) {
	ctx := context.Background()
	hub := kv.Memory()
	_, url := newBridge(t, hub)
	remote := dial(t, url)
	control := hub.Connect("control")

	ch, err := remote.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := control.Set(ctx, "lingualens.settings", `{"fontSize":30}`); err != nil {
		t.Fatal(err)
	}

	got := nextChange(t, ch)
	if got.Key != "lingualens.settings" || got.Value != `{"fontSize":30}` {
		t.Errorf("change = %+v", got)
	}
}

func TestRemoteWriteIsNotEchoed(t *testing.T) {
	ctx := context.Background()
	hub := kv.Memory()
	_, url := newBridge(t, hub)
	remote := dial(t, url)
	local, _ := hub.Connect("control").Watch(ctx)

	ch, _ := remote.Watch(ctx)
	_ = remote.Set(ctx, "k", "from-remote")

	if got := nextChange(t, local); !strings.HasPrefix(got.Origin, "bridge-") {
		t.Errorf("origin = %q, want bridge peer", got.Origin)
	}
	select {
	case c := <-ch:
		t.Errorf("writer received its own change %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnectClosesWatches(t *testing.T) {
	ctx := context.Background()
	srv, url := newBridge(t, kv.Memory())
	remote := dial(t, url)
	ch, _ := remote.Watch(ctx)

	srv.CloseClientConnections()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed watch channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch not closed after disconnect")
	}
	<-remote.Done()
	if _, _, err := remote.Get(ctx, "k"); !apperrors.IsCode(err, apperrors.CodeStorageUnavailable) {
		t.Errorf("Get after disconnect err = %v, want StorageUnavailable", err)
	}
}

func TestRemoteErrorKeepsCode(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	hub, err := kv.Open(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatal(err)
	}
	_, url := newBridge(t, hub)
	remote := dial(t, url)

	_ = os.RemoveAll(dir)
	err = remote.Set(ctx, "k", "v")
	if !apperrors.IsCode(err, apperrors.CodeStorageUnavailable) {
		t.Errorf("Set err = %v, want StorageUnavailable", err)
	}
}
