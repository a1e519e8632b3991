package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/meshkit/meshview/internal/client"
	"github.com/meshkit/meshview/internal/model"
)

// Handle is the opaque capability the dispatcher drives: a freshly created
// local viewer or a connection to a remote one. Built once per invocation,
// consumed by exactly one terminal action.
type Handle interface {
	GridShape(ctx context.Context) (model.GridShape, error)
	SetScene(ctx context.Context, coord model.SubwindowCoord, meshes []model.Mesh) error
	Snapshot(ctx context.Context, path string) error
	Remote() bool
	Close() error
}

type localHandle struct {
	srv    *Server
	cli    *client.Client
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenLocal starts an ephemeral in-process viewer on a loopback port and
// returns a handle speaking to it through the same client a remote viewer
// would see. The viewer dies with the handle.
func OpenLocal(ctx context.Context, opts Options, commandTimeout time.Duration) (Handle, error) {
	opts.Host = "127.0.0.1"
	opts.Port = 0
	srv := New(opts)
	addr, err := srv.Listen()
	if err != nil {
		return nil, fmt.Errorf("open local viewer: %w", err)
	}

	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(serveCtx); err != nil && err != context.Canceled {
			srv.logger.Error("local viewer stopped", "error", err)
		}
	}()

	cli := client.NewWithClient("http://"+addr, nil).WithUnaryTimeout(commandTimeout)
	return &localHandle{srv: srv, cli: cli, cancel: cancel, done: done}, nil
}

func (h *localHandle) GridShape(context.Context) (model.GridShape, error) {
	return h.srv.Grid(), nil
}

func (h *localHandle) SetScene(ctx context.Context, coord model.SubwindowCoord, meshes []model.Mesh) error {
	_, err := h.cli.SetScene(ctx, coord, meshes)
	return err
}

func (h *localHandle) Snapshot(ctx context.Context, path string) error {
	_, err := h.cli.Snapshot(ctx, path)
	return err
}

func (h *localHandle) Remote() bool {
	return false
}

func (h *localHandle) Close() error {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
	}
	return nil
}

type remoteHandle struct {
	cli  *client.Client
	grid *model.GridShape
}

// DialRemote returns a handle bound to a running viewer at host:port. No local
// window is created; the remote side owns its window and grid.
func DialRemote(host string, port int, connectTimeout, commandTimeout time.Duration) Handle {
	cli := client.New(host, port, connectTimeout).WithUnaryTimeout(commandTimeout)
	return &remoteHandle{cli: cli}
}

// GridShape learns the remote grid from the state endpoint, once.
func (h *remoteHandle) GridShape(ctx context.Context) (model.GridShape, error) {
	if h.grid != nil {
		return *h.grid, nil
	}
	state, err := h.cli.State(ctx)
	if err != nil {
		return model.GridShape{}, fmt.Errorf("query remote viewer state: %w", err)
	}
	grid := model.GridShape{Cols: state.GridCols, Rows: state.GridRows}
	h.grid = &grid
	return grid, nil
}

func (h *remoteHandle) SetScene(ctx context.Context, coord model.SubwindowCoord, meshes []model.Mesh) error {
	_, err := h.cli.SetScene(ctx, coord, meshes)
	return err
}

func (h *remoteHandle) Snapshot(ctx context.Context, path string) error {
	_, err := h.cli.Snapshot(ctx, path)
	return err
}

func (h *remoteHandle) Remote() bool {
	return true
}

func (h *remoteHandle) Close() error {
	return nil
}
