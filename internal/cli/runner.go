// Package cli parses meshview's subcommands and dispatches each invocation to
// exactly one terminal action: start a listening viewer, display meshes in a
// local or remote viewer, or capture a snapshot.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/meshkit/meshview/internal/config"
	"github.com/meshkit/meshview/internal/db"
	"github.com/meshkit/meshview/internal/mesh"
	"github.com/meshkit/meshview/internal/model"
	"github.com/meshkit/meshview/internal/viewer"
)

type Runner struct {
	cfg    config.Config
	out    io.Writer
	errOut io.Writer
}

func NewRunner(cfg config.Config, out, errOut io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Runner{cfg: cfg, out: out, errOut: errOut}
}

// Run executes one invocation. Argument-schema errors exit 2; dispatch-level
// fatal validation aborts are logged and still exit 0, matching the behavior
// of the viewer CLIs this tool is drop-in compatible with.
func (r *Runner) Run(ctx context.Context, args []string) int {
	cfgPath, rest, err := parseGlobalArgs(args)
	if err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	explicit := cfgPath != ""
	if cfgPath == "" {
		cfgPath = config.DefaultFilePath()
	}
	cfg, err := config.LoadFile(cfgPath, r.cfg, explicit)
	if err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	r.cfg = cfg

	if len(rest) == 0 {
		r.printUsage()
		return 2
	}
	switch rest[0] {
	case "open":
		return r.runOpen(ctx, rest[1:])
	case "view":
		return r.runView(ctx, rest[1:])
	case "snap":
		return r.runSnap(ctx, rest[1:])
	default:
		_, _ = fmt.Fprintf(r.errOut, "unknown command: %s\n", rest[0])
		r.printUsage()
		return 2
	}
}

func parseGlobalArgs(args []string) (string, []string, error) {
	cfgPath := ""
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--config requires value")
			}
			cfgPath = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return cfgPath, rest, nil
}

// windowFlags are the options shared by open and view. Sentinel defaults
// (-1, "") distinguish absent from explicitly set.
type windowFlags struct {
	title  string
	width  int
	height int
	cols   int
	rows   int
}

func addWindowFlags(fs *flag.FlagSet, w *windowFlags) {
	fs.StringVar(&w.title, "t", "", "window title")
	fs.StringVar(&w.title, "title", "", "window title")
	fs.IntVar(&w.width, "ww", -1, "window width in pixels")
	fs.IntVar(&w.width, "wx", -1, "window width in pixels")
	fs.IntVar(&w.width, "window-width", -1, "window width in pixels")
	fs.IntVar(&w.height, "wh", -1, "window height in pixels")
	fs.IntVar(&w.height, "wy", -1, "window height in pixels")
	fs.IntVar(&w.height, "window-height", -1, "window height in pixels")
	fs.IntVar(&w.cols, "nx", -1, "number of subwindows across")
	fs.IntVar(&w.cols, "subwindow-number-horizontal", -1, "number of subwindows across")
	fs.IntVar(&w.rows, "ny", -1, "number of subwindows down")
	fs.IntVar(&w.rows, "subwindow-number-vertical", -1, "number of subwindows down")
}

func (r *Runner) runOpen(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	port := fs.Int("p", r.cfg.Port, "listen port")
	fs.IntVar(port, "port", r.cfg.Port, "listen port")
	var w windowFlags
	addWindowFlags(fs, &w)
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(r.errOut, "open takes no positional arguments (got %q)\n", fs.Arg(0))
		return 2
	}

	logger := slog.New(slog.NewTextHandler(r.errOut, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := db.Open(ctx, r.cfg.DBPath)
	if err != nil {
		r.fatalf("open scene store: %v", err)
		return 1
	}
	defer store.Close() //nolint:errcheck
	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		r.fatalf("migrate scene store: %v", err)
		return 1
	}

	srv := viewer.New(viewer.Options{
		Title:        pickString(w.title, r.cfg.Title),
		WindowWidth:  pickInt(w.width, r.cfg.WindowWidth),
		WindowHeight: pickInt(w.height, r.cfg.WindowHeight),
		Grid: model.GridShape{
			Cols: pickInt(w.cols, r.cfg.GridCols),
			Rows: pickInt(w.rows, r.cfg.GridRows),
		},
		Host:   r.cfg.Host,
		Port:   *port,
		Store:  store,
		Logger: logger,
	})
	if err := srv.Restore(ctx); err != nil {
		r.fatalf("restore scenes: %v", err)
		return 1
	}
	if err := srv.Start(ctx); err != nil && err != context.Canceled {
		r.fatalf("viewer server: %v", err)
		return 1
	}
	return 0
}

func (r *Runner) runView(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	host := fs.String("h", "", "remote viewer host")
	fs.StringVar(host, "host", "", "remote viewer host")
	port := fs.Int("p", -1, "remote viewer port")
	fs.IntVar(port, "port", -1, "remote viewer port")
	ix := fs.Int("ix", -1, "target subwindow index, horizontal")
	fs.IntVar(ix, "subwindow-index-horizontal", -1, "target subwindow index, horizontal")
	iy := fs.Int("iy", -1, "target subwindow index, vertical")
	fs.IntVar(iy, "subwindow-index-vertical", -1, "target subwindow index, vertical")
	timeout := fs.Float64("timeout", r.cfg.RenderDrain.Seconds(), "seconds to wait after dispatch before exiting")
	var w windowFlags
	addWindowFlags(fs, &w)
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	files := fs.Args()
	if len(files) == 0 {
		_, _ = fmt.Fprintln(r.errOut, "usage: meshview view [options] filename...")
		return 2
	}

	// The index flags are a unit: one without the other has no meaningful
	// target subwindow.
	if (*ix >= 0) != (*iy >= 0) {
		r.fatalf("subwindow index flags -ix and -iy must be given together (got ix=%d, iy=%d)", *ix, *iy)
		return 0
	}

	remote := *port >= 0
	if remote {
		r.warnRemoteIgnored(w)
		if *ix >= 0 {
			r.warnf("subwindow index targeting is not supported for a remote viewer; using the first subwindow")
			*ix, *iy = 0, 0
		}
	}

	handle, ok := r.resolveViewHandle(ctx, remote, *host, *port, w, len(files))
	if !ok {
		return 0
	}
	defer handle.Close() //nolint:errcheck

	dispatched := r.routeView(ctx, handle, files, *ix, *iy)
	if dispatched && *timeout > 0 {
		// Drain delay, not a handshake: the viewer acks the request before it
		// finishes compositing, and nothing else holds this process alive.
		time.Sleep(time.Duration(*timeout * float64(time.Second)))
	}
	return 0
}

func (r *Runner) runSnap(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("snap", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	host := fs.String("h", "", "remote viewer host")
	fs.StringVar(host, "host", "", "remote viewer host")
	port := fs.Int("p", -1, "remote viewer port")
	fs.IntVar(port, "port", -1, "remote viewer port")
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(r.errOut, "usage: meshview snap -p PORT [-h HOST] filename")
		return 2
	}
	outPath := fs.Arg(0)

	var handle viewer.Handle
	if *port >= 0 {
		handle = viewer.DialRemote(r.hostOrDefault(*host), *port, r.cfg.ConnectTimeout, r.cfg.CommandTimeout)
	} else {
		// No port: snapshot a fresh local-ephemeral viewer. Only useful for
		// probing the capture path, but it mirrors how view resolves handles.
		var ok bool
		handle, ok = r.resolveViewHandle(ctx, false, "", -1, windowFlags{width: -1, height: -1, cols: -1, rows: -1}, 1)
		if !ok {
			return 0
		}
	}
	defer handle.Close() //nolint:errcheck

	if err := handle.Snapshot(ctx, outPath); err != nil {
		r.fatalf("capture snapshot to %s: %v", outPath, err)
		return 0
	}
	_, _ = fmt.Fprintf(r.out, "snapshot written to %s\n", outPath)
	return 0
}

// resolveViewHandle builds the handle a view invocation renders through. No
// port means a fresh local viewer sized to the requested or default grid; a
// port means the remote side owns the window.
func (r *Runner) resolveViewHandle(ctx context.Context, remote bool, host string, port int, w windowFlags, fileCount int) (viewer.Handle, bool) {
	if remote {
		return viewer.DialRemote(r.hostOrDefault(host), port, r.cfg.ConnectTimeout, r.cfg.CommandTimeout), true
	}
	grid := model.GridShape{Cols: pickInt(w.cols, fileCount), Rows: pickInt(w.rows, 1)}
	handle, err := viewer.OpenLocal(ctx, viewer.Options{
		Title:        pickString(w.title, r.cfg.Title),
		WindowWidth:  pickInt(w.width, r.cfg.WindowWidth),
		WindowHeight: pickInt(w.height, r.cfg.WindowHeight),
		Grid:         grid,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, r.cfg.CommandTimeout)
	if err != nil {
		r.fatalf("create local viewer: %v", err)
		return nil, false
	}
	return handle, true
}

// routeView performs the terminal view action and reports whether any render
// request was dispatched. All failures log and abort without touching further
// subwindows.
func (r *Runner) routeView(ctx context.Context, handle viewer.Handle, files []string, ix, iy int) bool {
	shape, err := handle.GridShape(ctx)
	if err != nil {
		r.fatalf("query subwindow grid: %v", err)
		return false
	}

	if ix >= 0 {
		return r.viewSingle(ctx, handle, shape, files, ix, iy)
	}
	return r.viewMulti(ctx, handle, shape, files)
}

// viewSingle renders every input mesh together into one targeted subwindow.
func (r *Runner) viewSingle(ctx context.Context, handle viewer.Handle, shape model.GridShape, files []string, ix, iy int) bool {
	if !shape.Contains(ix, iy) {
		r.fatalf("subwindow (%d,%d) out of range: grid is %s", ix, iy, shape)
		return false
	}
	meshes, err := mesh.LoadAll(files)
	if err != nil {
		r.fatalf("%v", err)
		return false
	}
	coord := model.SubwindowCoord{IX: ix, IY: iy}
	if err := handle.SetScene(ctx, coord, meshes); err != nil {
		r.fatalf("display meshes in subwindow %s: %v", coord, err)
		return false
	}
	return true
}

// viewMulti pairs input files with subwindows positionally, row-major, one
// mesh per subwindow. Excess files are dropped with a warning, never an error.
func (r *Runner) viewMulti(ctx context.Context, handle viewer.Handle, shape model.GridShape, files []string) bool {
	if n := shape.Count(); len(files) > n {
		r.warnf("%d meshes for %d subwindows; dropping the last %d", len(files), n, len(files)-n)
		files = files[:n]
	}
	dispatched := false
	for i, f := range files {
		m, err := mesh.Load(f)
		if err != nil {
			r.fatalf("%v", err)
			return dispatched
		}
		coord := shape.At(i)
		if err := handle.SetScene(ctx, coord, []model.Mesh{m}); err != nil {
			r.fatalf("display %s in subwindow %s: %v", m.Name, coord, err)
			return dispatched
		}
		dispatched = true
	}
	return dispatched
}

// warnRemoteIgnored flags window options that are meaningless for a remote
// target; the request proceeds regardless.
func (r *Runner) warnRemoteIgnored(w windowFlags) {
	if w.title != "" {
		r.warnf("--title is ignored for a remote viewer")
	}
	if w.width >= 0 {
		r.warnf("--window-width is ignored for a remote viewer")
	}
	if w.height >= 0 {
		r.warnf("--window-height is ignored for a remote viewer")
	}
	if w.cols >= 0 {
		r.warnf("--subwindow-number-horizontal is ignored for a remote viewer")
	}
	if w.rows >= 0 {
		r.warnf("--subwindow-number-vertical is ignored for a remote viewer")
	}
}

func (r *Runner) hostOrDefault(host string) string {
	if host != "" {
		return host
	}
	return r.cfg.Host
}

func (r *Runner) fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errOut, "meshview: "+format+"\n", args...)
}

func (r *Runner) warnf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errOut, "warning: "+format+"\n", args...)
}

func pickInt(flagValue, fallback int) int {
	if flagValue >= 0 {
		return flagValue
	}
	return fallback
}

func pickString(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return fallback
}

func (r *Runner) printUsage() {
	_, _ = fmt.Fprint(r.errOut, `usage: meshview [--config FILE] <command> [options]

Commands:
  open   start a listening viewer server
         open [-p PORT] [-t TITLE] [-ww W] [-wh H] [-nx N] [-ny N]
  view   display meshes in a local or remote viewer
         view [-h HOST] [-p PORT] [-ix IX] [-iy IY] [--timeout SECONDS]
              [-t TITLE] [-ww W] [-wh H] [-nx N] [-ny N] filename...
  snap   capture a snapshot from a running viewer
         snap -p PORT [-h HOST] filename
`)
}
