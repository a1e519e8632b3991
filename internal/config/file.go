package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot mirrors the block layout of a meshview config file. Every block and
// attribute is optional; absent values keep the compiled-in defaults.
type fileRoot struct {
	Window   *windowBlock   `hcl:"window,block"`
	Grid     *gridBlock     `hcl:"grid,block"`
	Server   *serverBlock   `hcl:"server,block"`
	Timeouts *timeoutsBlock `hcl:"timeouts,block"`
}

type windowBlock struct {
	Title  *string `hcl:"title,optional"`
	Width  *int    `hcl:"width,optional"`
	Height *int    `hcl:"height,optional"`
}

type gridBlock struct {
	Cols *int `hcl:"cols,optional"`
	Rows *int `hcl:"rows,optional"`
}

type serverBlock struct {
	Host   *string `hcl:"host,optional"`
	Port   *int    `hcl:"port,optional"`
	DBPath *string `hcl:"db_path,optional"`
}

type timeoutsBlock struct {
	RenderDrain *string `hcl:"render_drain,optional"`
	Connect     *string `hcl:"connect,optional"`
	Command     *string `hcl:"command,optional"`
}

// LoadFile overlays the HCL file at path on top of base. When required is
// false a missing file is not an error and base is returned unchanged.
func LoadFile(path string, base Config, required bool) (Config, error) {
	if path == "" {
		return base, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return base, nil
		}
		return base, fmt.Errorf("config file %s: %w", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return base, fmt.Errorf("parse config %s: %w", path, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(), &root)
	if diags.HasErrors() {
		return base, fmt.Errorf("decode config %s: %w", path, diags)
	}

	return merge(base, root)
}

// evalContext exposes "home" and an "env" map so paths in the config file can
// be written without hardcoding a user directory.
func evalContext() *hcl.EvalContext {
	vars := map[string]cty.Value{}
	if home, err := os.UserHomeDir(); err == nil {
		vars["home"] = cty.StringVal(home)
	} else {
		vars["home"] = cty.StringVal("")
	}

	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}
	if len(env) == 0 {
		vars["env"] = cty.MapValEmpty(cty.String)
	} else {
		vars["env"] = cty.MapVal(env)
	}

	return &hcl.EvalContext{Variables: vars}
}

func merge(base Config, root fileRoot) (Config, error) {
	cfg := base
	if w := root.Window; w != nil {
		if w.Title != nil {
			cfg.Title = *w.Title
		}
		if w.Width != nil {
			cfg.WindowWidth = *w.Width
		}
		if w.Height != nil {
			cfg.WindowHeight = *w.Height
		}
	}
	if g := root.Grid; g != nil {
		if g.Cols != nil {
			cfg.GridCols = *g.Cols
		}
		if g.Rows != nil {
			cfg.GridRows = *g.Rows
		}
	}
	if s := root.Server; s != nil {
		if s.Host != nil {
			cfg.Host = *s.Host
		}
		if s.Port != nil {
			cfg.Port = *s.Port
		}
		if s.DBPath != nil {
			cfg.DBPath = *s.DBPath
		}
	}
	if t := root.Timeouts; t != nil {
		var err error
		if cfg.RenderDrain, err = overlayDuration(cfg.RenderDrain, t.RenderDrain); err != nil {
			return cfg, fmt.Errorf("timeouts.render_drain: %w", err)
		}
		if cfg.ConnectTimeout, err = overlayDuration(cfg.ConnectTimeout, t.Connect); err != nil {
			return cfg, fmt.Errorf("timeouts.connect: %w", err)
		}
		if cfg.CommandTimeout, err = overlayDuration(cfg.CommandTimeout, t.Command); err != nil {
			return cfg, fmt.Errorf("timeouts.command: %w", err)
		}
	}
	return cfg, nil
}

func overlayDuration(current time.Duration, raw *string) (time.Duration, error) {
	if raw == nil {
		return current, nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return current, err
	}
	if d < 0 {
		return current, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}
