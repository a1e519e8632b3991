package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meshkit/meshview/internal/api"
	"github.com/meshkit/meshview/internal/model"
)

func TestStateDecodesEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("expected GET, got %s", r.Method)
		}
		_, _ = io.WriteString(w, `{"schema_version":"v1","generated_at":"2026-08-29T00:00:00Z","title":"meshview","window_width":1280,"window_height":800,"grid_cols":2,"grid_rows":1,"subwindows":[{"subwindow":{"ix":0,"iy":0},"mesh_count":0},{"subwindow":{"ix":1,"iy":0},"mesh_count":0}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWithClient(srv.URL, srv.Client())
	state, err := c.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.GridCols != 2 || state.GridRows != 1 {
		t.Fatalf("unexpected grid: %+v", state)
	}
	if len(state.Subwindows) != 2 {
		t.Fatalf("expected 2 subwindows, got %d", len(state.Subwindows))
	}
}

func TestSetSceneSendsPayload(t *testing.T) {
	var got api.SceneRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/scene", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"schema_version":"v1","generated_at":"2026-08-29T00:00:00Z","subwindow":{"ix":1,"iy":0},"mesh_count":1}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWithClient(srv.URL, srv.Client())
	resp, err := c.SetScene(context.Background(), model.SubwindowCoord{IX: 1, IY: 0}, []model.Mesh{
		{MeshID: "m1", Name: "cube.obj", Format: model.FormatOBJ, Payload: []byte("v 0 0 0\n")},
	})
	if err != nil {
		t.Fatalf("set scene: %v", err)
	}
	if resp.MeshCount != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got.Subwindow.IX != 1 || got.Subwindow.IY != 0 {
		t.Fatalf("unexpected subwindow in request: %+v", got.Subwindow)
	}
	if len(got.Meshes) != 1 || got.Meshes[0].Name != "cube.obj" || got.Meshes[0].Format != "obj" {
		t.Fatalf("unexpected meshes in request: %+v", got.Meshes)
	}
	if string(got.Meshes[0].Payload) != "v 0 0 0\n" {
		t.Fatalf("payload not transported: %q", got.Meshes[0].Payload)
	}
}

func TestSnapshotSendsPath(t *testing.T) {
	var got api.SnapshotRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"schema_version":"v1","generated_at":"2026-08-29T00:00:00Z","snapshot_id":"snap-1","path":"/tmp/out.json"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWithClient(srv.URL, srv.Client())
	resp, err := c.Snapshot(context.Background(), "/tmp/out.json")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.Path != "/tmp/out.json" {
		t.Fatalf("unexpected path in request: %q", got.Path)
	}
	if resp.SnapshotID != "snap-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestErrorEnvelopeBecomesRequestError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/scene", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"schema_version":"v1","generated_at":"2026-08-29T00:00:00Z","error":{"code":"out_of_range","message":"subwindow (5,5) out of range: grid is 2x2"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWithClient(srv.URL, srv.Client())
	_, err := c.SetScene(context.Background(), model.SubwindowCoord{IX: 5, IY: 5}, nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Code != api.CodeOutOfRange || reqErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected error: %+v", reqErr)
	}
}

func TestNonEnvelopeErrorStillFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWithClient(srv.URL, srv.Client())
	_, err := c.Health(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", reqErr.StatusCode)
	}
}
