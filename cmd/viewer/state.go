package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reservemap/reservemap/internal/mapview"
	"github.com/reservemap/reservemap/internal/naturereserves"
	"github.com/reservemap/reservemap/internal/urlstate"
	"github.com/reservemap/reservemap/internal/viewport"
)

// stateOutput is what the state command prints.
type stateOutput struct {
	State    mapview.ViewState `json:"state"`
	Commands []string          `json:"commands"`
}

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state URL",
		Short: "Print the view state a page URL opens with (JSON by default, --yaml for YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			useYAML, _ := cmd.Flags().GetBool("yaml")
			fetch, _ := cmd.Flags().GetBool("fetch")
			width, _ := cmd.Flags().GetFloat64("width")
			height, _ := cmd.Flags().GetFloat64("height")

			var backend mapview.Backend
			if fetch {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				backend = naturereserves.NewClient(naturereserves.ClientConfig{
					BaseURL: cfg.Backend.URL,
					TileURL: cfg.Backend.TileURL,
					Timeout: cfg.Backend.Timeout,
				})
			}

			out, err := initialState(cmd.Context(), args[0], viewport.Size{Width: width, Height: height}, backend)
			if err != nil {
				return err
			}
			return writeState(cmd.OutOrStdout(), out, useYAML)
		},
	}
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cmd.Flags().Bool("fetch", false, "run the startup loads against the backend")
	cmd.Flags().Float64("width", 0, "viewport width in pixels")
	cmd.Flags().Float64("height", 0, "viewport height in pixels")
	cmd.Flags().String("backend-url", "http://localhost:8000", "reserves API base URL")
	return cmd
}

// initialState starts a controller on rawURL. With a backend, startup
// commands run to completion in order; otherwise they are only listed.
func initialState(ctx context.Context, rawURL string, size viewport.Size, backend mapview.Backend) (*stateOutput, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctrl := mapview.New(mapview.Config{
		History:  urlstate.NewMemoryHistory(rawURL),
		Logger:   zerolog.Nop(),
		Viewport: size,
	})

	pending := ctrl.Start()
	out := &stateOutput{Commands: []string{}}
	for len(pending) > 0 {
		cmd := pending[0]
		pending = pending[1:]
		out.Commands = append(out.Commands, mapview.CommandName(cmd))
		if backend == nil {
			continue
		}
		ev := mapview.Execute(ctx, backend, cmd)
		if ev == nil {
			continue
		}
		pending = append(pending, ctrl.Handle(ev)...)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	out.State = ctrl.State()
	return out, nil
}

// writeState prints out as indented JSON, or as YAML with the JSON field names.
func writeState(w io.Writer, out *stateOutput, useYAML bool) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if useYAML {
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		if data, err = yaml.Marshal(doc); err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
