// Package viewer implements the viewer daemon: a subwindow grid whose content
// is driven over a small HTTP/JSON API, with the actual rendering behind the
// Renderer seam.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshkit/meshview/internal/api"
	"github.com/meshkit/meshview/internal/model"
)

var ErrOutOfRange = errors.New("subwindow out of range")

// SceneStore is what the daemon needs from a persistence layer. db.Store
// implements it; a nil store means the viewer is ephemeral.
type SceneStore interface {
	ReplaceScene(ctx context.Context, scene model.Scene) error
	ListScenes(ctx context.Context) ([]model.Scene, error)
	InsertSnapshot(ctx context.Context, snap model.Snapshot) error
}

type Options struct {
	Title        string
	WindowWidth  int
	WindowHeight int
	Grid         model.GridShape
	Host         string
	Port         int // 0 picks an ephemeral port
	Store        SceneStore
	Renderer     Renderer
	Logger       *slog.Logger
}

type Server struct {
	opts       Options
	grid       model.GridShape
	renderer   Renderer
	store      SceneStore
	logger     *slog.Logger
	instanceID string
	startedAt  time.Time
	httpSrv    *http.Server

	mu       sync.Mutex
	listener net.Listener
	scenes   map[model.SubwindowCoord]model.Scene
}

func New(opts Options) *Server {
	grid := opts.Grid
	if grid.Cols <= 0 {
		grid.Cols = 1
	}
	if grid.Rows <= 0 {
		grid.Rows = 1
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = NewHeadlessRenderer(opts.Title, grid)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		opts:       opts,
		grid:       grid,
		renderer:   renderer,
		store:      opts.Store,
		logger:     logger,
		instanceID: uuid.NewString(),
		startedAt:  time.Now().UTC(),
		scenes:     map[model.SubwindowCoord]model.Scene{},
		httpSrv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/v1/health", s.healthHandler)
	mux.HandleFunc("/v1/state", s.stateHandler)
	mux.HandleFunc("/v1/scene", s.sceneHandler)
	mux.HandleFunc("/v1/snapshot", s.snapshotHandler)
	return s
}

func (s *Server) Grid() model.GridShape {
	return s.grid
}

// Restore reloads persisted scenes into memory and the renderer. Scenes that
// fall outside the current grid are skipped: the grid shape may have shrunk
// since they were written.
func (s *Server) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	scenes, err := s.store.ListScenes(ctx)
	if err != nil {
		return fmt.Errorf("restore scenes: %w", err)
	}
	for _, scene := range scenes {
		if !s.grid.Contains(scene.Subwindow.IX, scene.Subwindow.IY) {
			s.logger.Warn("skipping persisted scene outside grid",
				"subwindow", scene.Subwindow.String(), "grid", s.grid.String())
			continue
		}
		if err := s.renderer.Compose(ctx, scene.Subwindow, scene.Meshes); err != nil {
			return fmt.Errorf("restore scene %s: %w", scene.Subwindow, err)
		}
		s.mu.Lock()
		s.scenes[scene.Subwindow] = scene
		s.mu.Unlock()
	}
	if len(scenes) > 0 {
		s.logger.Info("restored persisted scenes", "count", len(scenes))
	}
	return nil
}

// Listen binds the TCP listener and returns the bound address, which matters
// when Options.Port was 0.
func (s *Server) Listen() (string, error) {
	host := s.opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(s.opts.Port)))
	if err != nil {
		return "", fmt.Errorf("listen tcp: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return ln.Addr().String(), nil
}

// Serve runs the HTTP server on the bound listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve called before listen")
	}

	s.logger.Info("viewer listening",
		"addr", ln.Addr().String(), "grid", s.grid.String(), "title", s.opts.Title)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve viewer: %w", err)
		}
		return nil
	}
}

// Start is Listen followed by Serve; the open subcommand's path.
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// SetScene replaces one subwindow's content: compose first, then remember,
// then persist. A persistence failure is surfaced to the caller but does not
// undo the composition.
func (s *Server) SetScene(ctx context.Context, coord model.SubwindowCoord, meshes []model.Mesh) (model.Scene, error) {
	if !s.grid.Contains(coord.IX, coord.IY) {
		return model.Scene{}, fmt.Errorf("%w: requested %s, grid is %s", ErrOutOfRange, coord, s.grid)
	}
	scene := model.Scene{Subwindow: coord, Meshes: meshes, SetAt: time.Now().UTC()}
	if err := s.renderer.Compose(ctx, coord, meshes); err != nil {
		return model.Scene{}, fmt.Errorf("compose %s: %w", coord, err)
	}
	s.mu.Lock()
	s.scenes[coord] = scene
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.ReplaceScene(ctx, scene); err != nil {
			return model.Scene{}, fmt.Errorf("persist scene %s: %w", coord, err)
		}
	}
	s.logger.Info("scene set", "subwindow", coord.String(), "meshes", len(meshes))
	return scene, nil
}

// Snapshot captures the current composition to path and records it.
func (s *Server) Snapshot(ctx context.Context, path string) (model.Snapshot, error) {
	if strings.TrimSpace(path) == "" {
		return model.Snapshot{}, errors.New("snapshot path is empty")
	}
	if err := s.renderer.Snapshot(ctx, path); err != nil {
		return model.Snapshot{}, err
	}
	snap := model.Snapshot{SnapshotID: uuid.NewString(), Path: path, TakenAt: time.Now().UTC()}
	if s.store != nil {
		if err := s.store.InsertSnapshot(ctx, snap); err != nil {
			return model.Snapshot{}, fmt.Errorf("record snapshot: %w", err)
		}
	}
	s.logger.Info("snapshot written", "path", path, "snapshot_id", snap.SnapshotID)
	return snap, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Status:        "ok",
		InstanceID:    s.instanceID,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	env := api.StateEnvelope{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Title:         s.opts.Title,
		WindowWidth:   s.opts.WindowWidth,
		WindowHeight:  s.opts.WindowHeight,
		GridCols:      s.grid.Cols,
		GridRows:      s.grid.Rows,
	}
	s.mu.Lock()
	for i := 0; i < s.grid.Count(); i++ {
		coord := s.grid.At(i)
		state := api.SubwindowState{Subwindow: api.SubwindowRef{IX: coord.IX, IY: coord.IY}}
		if scene, ok := s.scenes[coord]; ok {
			state.MeshCount = len(scene.Meshes)
			for _, m := range scene.Meshes {
				state.MeshNames = append(state.MeshNames, m.Name)
			}
			setAt := scene.SetAt.UTC().Format(time.RFC3339Nano)
			state.SetAt = &setAt
		}
		env.Subwindows = append(env.Subwindows, state)
	}
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, env)
}

func (s *Server) sceneHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req api.SceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "malformed scene request")
		return
	}
	meshes := make([]model.Mesh, 0, len(req.Meshes))
	for _, p := range req.Meshes {
		meshes = append(meshes, model.Mesh{
			MeshID:  p.MeshID,
			Name:    p.Name,
			Format:  model.MeshFormat(p.Format),
			Payload: p.Payload,
		})
	}
	coord := model.SubwindowCoord{IX: req.Subwindow.IX, IY: req.Subwindow.IY}
	scene, err := s.SetScene(r.Context(), coord, meshes)
	if err != nil {
		if errors.Is(err, ErrOutOfRange) {
			s.writeError(w, http.StatusNotFound, api.CodeOutOfRange, err.Error())
			return
		}
		s.logger.Error("set scene failed", "subwindow", coord.String(), "error", err)
		s.writeError(w, http.StatusInternalServerError, api.CodeInternal, "failed to set scene")
		return
	}
	s.writeJSON(w, http.StatusOK, api.SceneResponse{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Subwindow:     req.Subwindow,
		MeshCount:     len(scene.Meshes),
	})
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req api.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "malformed snapshot request")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "snapshot path is required")
		return
	}
	snap, err := s.Snapshot(r.Context(), req.Path)
	if err != nil {
		s.logger.Error("snapshot failed", "path", req.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, api.CodeInternal, "failed to capture snapshot")
		return
	}
	s.writeJSON(w, http.StatusOK, api.SnapshotResponse{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		SnapshotID:    snap.SnapshotID,
		Path:          snap.Path,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, api.ErrorResponse{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Error:         api.APIError{Code: code, Message: msg},
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allow ...string) {
	if len(allow) > 0 {
		w.Header().Set("Allow", strings.Join(allow, ", "))
	}
	s.writeError(w, http.StatusMethodNotAllowed, api.CodeInvalidRequest, "method not allowed")
}
