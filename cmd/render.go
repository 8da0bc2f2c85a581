// File: cmd/render.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/observability"
	"github.com/xkilldash9x/lancet/internal/render"
)

// newRenderCmd creates the `render` command against the root's viper instance.
func newRenderCmd(v *viper.Viper) *cobra.Command {
	renderCmd := &cobra.Command{
		Use:   "render [urls...]",
		Short: "Fetches pages, runs their scripts, and emits the settled DOM",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			bindings := []struct{ key, flag string }{
				{"render.execute_scripts", "scripts"},
				{"render.timeout", "timeout"},
				{"render.wait_strategy", "wait"},
				{"render.max_scripts", "max-scripts"},
				{"render.concurrency", "concurrency"},
				{"render.extract_metadata", "metadata"},
				{"render.extract_feeds", "feeds"},
				{"render.extract_text", "text"},
				{"network.user_agent", "user-agent"},
				{"network.proxy_url", "proxy"},
				{"network.insecure_skip_verify", "insecure"},
				{"output.format", "format"},
				{"output.pretty", "pretty"},
				{"output.file", "output"},
			}
			for _, b := range bindings {
				if err := v.BindPFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-unmarshal now that flags are bound so their overrides land.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if strings.EqualFold(cfg.Output.Format, "text") {
				cfg.Render.ExtractText = true
			}

			targets := make([]string, len(args))
			for i, arg := range args {
				targets[i] = normalizeTarget(arg)
			}

			renderer := render.New(cfg, logger)
			defer renderer.Close()

			logger.Info("Starting render batch",
				zap.Int("pages", len(targets)),
				zap.Bool("scripts", cfg.Render.ExecuteScripts),
				zap.String("wait", cfg.Render.WaitStrategy),
				zap.Int("concurrency", cfg.Render.Concurrency),
			)

			start := time.Now()
			results := renderer.RenderAll(ctx, targets, cfg.Render.Concurrency)

			out, closeOut, err := openOutput(cmd, cfg.Output.File)
			if err != nil {
				return err
			}
			if err := writeResults(out, results, cfg.Output); err != nil {
				closeOut()
				return fmt.Errorf("write results: %w", err)
			}
			if err := closeOut(); err != nil {
				return fmt.Errorf("close output: %w", err)
			}

			if err := ctx.Err(); err != nil {
				logger.Warn("Render batch aborted", zap.Error(err))
				return fmt.Errorf("render aborted: %w", err)
			}

			failed := 0
			for _, res := range results {
				if res.Status == 0 {
					failed++
				}
			}
			logger.Info("Render batch finished",
				zap.Int("pages", len(results)),
				zap.Int("failed", failed),
				zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
			)
			if failed > 0 && failed == len(results) {
				return fmt.Errorf("%d of %d pages failed to render", failed, len(results))
			}
			return nil
		},
	}

	renderCmd.Flags().BoolP("scripts", "s", true, "execute page scripts in the sandbox")
	renderCmd.Flags().DurationP("timeout", "t", 15*time.Second, "execution budget per page")
	renderCmd.Flags().String("wait", string(schemas.WaitNetworkIdle), "settle strategy: networkidle or timeout")
	renderCmd.Flags().Int("max-scripts", schemas.DefaultMaxScripts, "maximum number of scripts executed per page")
	renderCmd.Flags().IntP("concurrency", "j", 4, "number of pages rendered in parallel")
	renderCmd.Flags().Bool("metadata", true, "extract page metadata")
	renderCmd.Flags().Bool("feeds", false, "discover feed links")
	renderCmd.Flags().Bool("text", false, "extract readable page text")
	renderCmd.Flags().String("user-agent", "", "override the outbound User-Agent header")
	renderCmd.Flags().String("proxy", "", "proxy URL for outbound requests")
	renderCmd.Flags().Bool("insecure", false, "skip TLS certificate verification")
	renderCmd.Flags().StringP("output", "o", "", "write results to a file instead of stdout")
	renderCmd.Flags().StringP("format", "f", "json", "output format: json, html, or text")
	renderCmd.Flags().Bool("pretty", true, "indent JSON output")

	return renderCmd
}

// normalizeTarget defaults bare hostnames to https.
func normalizeTarget(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// openOutput resolves the output sink. An empty path or "-" means stdout.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

// writeResults emits the batch in the configured format. JSON output is a
// single object for one page and an array for several; html and text emit
// the raw documents separated by a blank line.
func writeResults(w io.Writer, results []*schemas.RenderResult, out config.OutputConfig) error {
	switch strings.ToLower(out.Format) {
	case "json":
		var payload interface{} = results
		if len(results) == 1 {
			payload = results[0]
		}
		var (
			data []byte
			err  error
		)
		if out.Pretty {
			data, err = jsoniter.MarshalIndent(payload, "", "  ")
		} else {
			data, err = jsoniter.Marshal(payload)
		}
		if err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case "html":
		return writeDocuments(w, results, func(res *schemas.RenderResult) string { return res.HTML })
	case "text":
		return writeDocuments(w, results, func(res *schemas.RenderResult) string { return res.Text })
	default:
		return fmt.Errorf("unsupported output format %q", out.Format)
	}
}

func writeDocuments(w io.Writer, results []*schemas.RenderResult, pick func(*schemas.RenderResult) string) error {
	for i, res := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(pick(res), "\n")); err != nil {
			return err
		}
	}
	return nil
}
