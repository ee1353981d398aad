package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/viewer"
	"github.com/zjrosen/lumen/internal/watcher"
)

func newViewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Open a file in the highlighting pager",
		Long: `Open a file in a full-screen pager. Only the lines on screen are
highlighted, so large files open instantly.

With watch: true in the config (or --watch), the file, the grammar
directories and the theme file are watched: editing the file re-highlights
only the changed lines, and editing a grammar or theme reloads it.

Keys:
  j/k, arrows, b/f        scroll
  g/G                     top/bottom
  n                       toggle line numbers
  w                       toggle wrapping
  r                       reload grammars and theme
  ?                       show all keys
  q                       quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if args[0] == "-" {
				return fmt.Errorf("view reads keys from stdin; pass a file")
			}
			path, text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			env, err := a.loadEnv(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.close()

			load := env.loader(a.syntax, path, text)
			p, h, err := load(ctx)
			if err != nil {
				return err
			}

			opts := viewer.Options{
				Path:        path,
				Text:        text,
				Parser:      p,
				Highlighter: h,
				Render:      a.renderOptions(),
				Load:        load,
				Reload:      env.reload,
				Events:      env.set.Subscribe(ctx),
				Logs:        log.NewListener(ctx, log.LevelWarn),
			}
			opts.Render.Width = 0

			watch, _ := cmd.Flags().GetBool("watch")
			if watch || a.cfg.Watch {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				w, err := watcher.New(watcher.DefaultConfig(append(env.watchPaths(), abs)...))
				if err != nil {
					return fmt.Errorf("watching files: %w", err)
				}
				changes, err := w.Start()
				if err != nil {
					return fmt.Errorf("watching files: %w", err)
				}
				defer func() {
					if err := w.Stop(); err != nil {
						log.ErrorErr(log.CatWatcher, "stopping watcher", err)
					}
				}()
				opts.Changes = changes
			}

			if err := viewer.Run(ctx, opts); err != nil {
				return fmt.Errorf("running viewer: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("watch", false, "reload when the file, grammars or theme change")
	cmd.Flags().BoolP("line-numbers", "n", false, "show line numbers")
	return cmd
}
