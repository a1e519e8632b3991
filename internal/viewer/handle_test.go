package viewer

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/meshkit/meshview/internal/model"
)

func TestOpenLocalHandleLifecycle(t *testing.T) {
	ctx := context.Background()
	handle, err := OpenLocal(ctx, Options{
		Title:  "local",
		Grid:   model.GridShape{Cols: 2, Rows: 1},
		Logger: discardLogger(),
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("open local: %v", err)
	}
	if handle.Remote() {
		t.Fatalf("local handle must not report remote")
	}

	shape, err := handle.GridShape(ctx)
	if err != nil {
		t.Fatalf("grid shape: %v", err)
	}
	if shape != (model.GridShape{Cols: 2, Rows: 1}) {
		t.Fatalf("unexpected shape: %s", shape)
	}

	if err := handle.SetScene(ctx, model.SubwindowCoord{IX: 0, IY: 0}, []model.Mesh{
		{MeshID: "m1", Name: "a.obj", Format: model.FormatOBJ, Payload: []byte("v 0 0 0\n")},
	}); err != nil {
		t.Fatalf("set scene through local handle: %v", err)
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRemoteHandleLearnsGridOnce(t *testing.T) {
	stateCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/state", func(w http.ResponseWriter, r *http.Request) {
		stateCalls++
		_, _ = io.WriteString(w, `{"schema_version":"v1","generated_at":"2026-08-29T00:00:00Z","title":"remote","window_width":800,"window_height":600,"grid_cols":3,"grid_rows":2,"subwindows":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	handle := DialRemote(host, port, time.Second, 5*time.Second)
	if !handle.Remote() {
		t.Fatalf("remote handle must report remote")
	}

	ctx := context.Background()
	shape, err := handle.GridShape(ctx)
	if err != nil {
		t.Fatalf("grid shape: %v", err)
	}
	if shape != (model.GridShape{Cols: 3, Rows: 2}) {
		t.Fatalf("unexpected shape: %s", shape)
	}
	if _, err := handle.GridShape(ctx); err != nil {
		t.Fatalf("second grid shape: %v", err)
	}
	if stateCalls != 1 {
		t.Fatalf("expected grid learned once, state called %d times", stateCalls)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("close remote handle: %v", err)
	}
}
