package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/auth"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/config"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/logging"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/preview"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var errEmptyPassword = errors.New("password must not be empty")

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth.admin_password_hash",
		Long:  "Print a bcrypt hash for auth.admin_password_hash. The password is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errEmptyPassword
			}
			hashed, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return err
		},
	}
}

func newRenderCommand() *cobra.Command {
	var inputPath string
	var fragment bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the public page to stdout",
		Long:  "Render the public page to stdout, from the database or from a JSON settings file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig := config.Read(viper.GetViper())
			renderer := render.NewRenderer(render.Config{Language: appConfig.PageLanguage})

			if inputPath != "" {
				output, err := renderCandidateFile(renderer, inputPath, fragment)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(output)
				return err
			}

			logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			app, err := newApplication(appConfig, logger)
			if err != nil {
				return err
			}
			defer app.Close() //nolint:errcheck

			if fragment {
				current, err := app.settings.Load(cmd.Context())
				if err != nil {
					return err
				}
				return renderer.WriteFragment(cmd.OutOrStdout(), current)
			}
			page, err := app.settings.PublicPage(cmd.Context())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(page)
			return err
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "JSON settings file to render instead of the stored settings")
	cmd.Flags().BoolVar(&fragment, "fragment", false, "Render the page container without the document wrapper")
	return cmd
}

func newPreviewCommand() *cobra.Command {
	var inputPath string
	var outputPath string
	var quietPeriod time.Duration

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Re-render an HTML file whenever a JSON settings file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig := config.Read(viper.GetViper())
			logger, err := logging.NewLogger(appConfig.LogLevel, "console")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watcher := &previewWatcher{
				renderer:    render.NewRenderer(render.Config{Language: appConfig.PageLanguage}),
				inputPath:   inputPath,
				outputPath:  outputPath,
				quietPeriod: quietPeriod,
				logger:      logger,
			}
			return watcher.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&inputPath, "watch", "", "JSON settings file to watch")
	cmd.Flags().StringVar(&outputPath, "out", "", "HTML file to write")
	cmd.Flags().DurationVar(&quietPeriod, "debounce", preview.DefaultQuietPeriod, "Quiet period after the last change before re-rendering")
	_ = cmd.MarkFlagRequired("watch")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// previewWatcher keeps an HTML file in sync with a settings file, the same
// way the editor keeps its preview pane in sync with the form.
type previewWatcher struct {
	renderer    *render.Renderer
	inputPath   string
	outputPath  string
	quietPeriod time.Duration
	logger      *zap.Logger
	sequencer   preview.Sequencer
}

func (w *previewWatcher) Run(ctx context.Context) error {
	if err := w.refresh(w.sequencer.Next()); err != nil {
		w.logger.Warn("initial preview failed", zap.Error(err))
	}

	debouncer := preview.NewDebouncer(w.quietPeriod, func(uint64) {
		if err := w.refresh(w.sequencer.Next()); err != nil {
			w.logger.Warn("preview failed", zap.String("input", w.inputPath), zap.Error(err))
		}
	})
	defer debouncer.Stop()

	w.logger.Info("watching settings", zap.String("input", w.inputPath), zap.String("output", w.outputPath))
	return preview.Watch(ctx, w.inputPath, func() {
		debouncer.Trigger()
	})
}

// refresh renders request seq and writes it unless a newer render has
// already been written.
func (w *previewWatcher) refresh(seq uint64) error {
	output, err := renderCandidateFile(w.renderer, w.inputPath, false)
	if err != nil {
		return err
	}
	if !w.sequencer.Apply(seq) {
		w.logger.Debug("discarding stale preview", zap.Uint64("seq", seq))
		return nil
	}
	if err := writeFileAtomic(w.outputPath, output); err != nil {
		return err
	}
	w.logger.Info("preview written", zap.Uint64("seq", seq), zap.String("output", w.outputPath))
	return nil
}

// renderCandidateFile reads a settings document from path, normalizes it and
// renders it. A file that is not a JSON object renders the defaults.
func renderCandidateFile(renderer *render.Renderer, path string, fragment bool) ([]byte, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	candidate := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	if err := decoder.Decode(&candidate); err != nil {
		candidate = map[string]any{}
	}
	if nested, ok := candidate[profile.OptionName].(map[string]any); ok {
		candidate = nested
	}

	settings := profile.Normalize(candidate)
	var rendered string
	if fragment {
		rendered, err = renderer.Fragment(settings)
	} else {
		rendered, err = renderer.Document(settings)
	}
	if err != nil {
		return nil, err
	}
	return []byte(rendered), nil
}

func writeFileAtomic(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), ".linkinbio-preview-*")
	if err != nil {
		return err
	}
	tempName := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempName)
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return err
	}
	return os.Rename(tempName, path)
}
