package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"logvault/internal/sanitize"
)

func newSanitizeCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Apply the masking policy to log lines from stdin",
		Long: "Reads JSON log lines from stdin, applies the configured masking policy, " +
			"and writes sanitized lines to stdout. Dropped lines are counted on stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			engine := sanitize.New(cfg.Masking)

			stdout := bufio.NewWriter(cmd.OutOrStdout())
			defer stdout.Flush()

			var written, dropped, malformed int
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			for scanner.Scan() {
				line := strings.TrimRight(scanner.Text(), "\r")
				if strings.TrimSpace(line) == "" {
					dropped++
					continue
				}
				out, reason := engine.Sanitize(line)
				switch reason {
				case sanitize.DropNone:
					fmt.Fprintln(stdout, out)
					written++
				case sanitize.DropMalformed, sanitize.DropError:
					malformed++
				default:
					dropped++
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d written, %d dropped by policy, %d malformed\n",
					written, dropped, malformed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the summary line on stderr")
	return cmd
}
