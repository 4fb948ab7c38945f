package cmd

import (
	"bufio"
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/grovetools/storefront/cli"
	"github.com/grovetools/storefront/errors"
	"github.com/grovetools/storefront/logging"
	"github.com/grovetools/storefront/tui/components/logviewer"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogCmd creates the `log` command.
func NewLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show storefront's own log file",
		Long: `Prints the log file written when logging.file is enabled:

  logging:
    format: { preset: json }
    file:
      enabled: true
      path: ~/.local/state/storefront/storefront.log

Provisioning credentials are never written to this file.`,
		Args: cobra.NoArgs,
		RunE: runLog,
	}
	cmd.Flags().BoolP("follow", "f", false, "Keep printing new lines as they are written")
	cmd.Flags().IntP("lines", "n", 50, "Number of lines to show from the end of the file (0 for all)")
	return cmd
}

func runLog(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	var logCfg logging.Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("logging section: %v", err))
	}
	path := logCfg.SinkPath()
	if path == "" {
		return errors.ConfigInvalid("logging.file is not enabled, nothing has been recorded")
	}

	follow, _ := cmd.Flags().GetBool("follow")
	n, _ := cmd.Flags().GetInt("lines")
	raw := cli.GetOptions(cmd).JSONOutput
	out := cmd.OutOrStdout()

	emit := func(line string) {
		if line == "" {
			return
		}
		if !raw {
			line = logviewer.FormatLogLine(line)
		}
		fmt.Fprintln(out, line)
	}

	lines, err := lastLines(path, n)
	if err != nil && !(follow && os.IsNotExist(err)) {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()
	defer t.Stop()

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			emit(line.Text)
		case <-cmd.Context().Done():
			return nil
		}
	}
}

// lastLines returns the final n lines of the file at path, or all of them when n <= 0.
func lastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}
