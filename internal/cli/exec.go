package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	execFile    string
	execSave    bool
	execKeepErr bool
)

var execCmd = &cobra.Command{
	Use:   "exec [command line]...",
	Short: "Run shell command lines non-interactively",
	Long: `Run shell command lines against the selected profile without a prompt.
Each argument is one command line, e.g.

  nodeshell exec "cd /content" "set title 'Hello'" save

With --file the lines are read from a script ('-' reads stdin). Execution
stops at the first failing line unless --keep-going is set.`,
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "read command lines from a script file, '-' for stdin")
	execCmd.Flags().BoolVar(&execSave, "save", false, "save pending changes after the last line")
	execCmd.Flags().BoolVarP(&execKeepErr, "keep-going", "k", false, "continue after a failing line")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) (err error) {
	lines := append([]string(nil), args...)
	if execFile != "" {
		scripted, err := readScript(cmd.InOrStdin(), execFile)
		if err != nil {
			return err
		}
		lines = append(lines, scripted...)
	}
	if len(lines) == 0 {
		return fmt.Errorf("no command lines given")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := connect(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := env.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var failed int
	for i, line := range lines {
		if env.shell.Exited() {
			break
		}
		if execErr := env.shell.Execute(ctx, line); execErr != nil {
			failed++
			if !execKeepErr {
				return fmt.Errorf("line %d (%s): %w", i+1, line, execErr)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "line %d: error: %v\n", i+1, execErr)
		}
	}

	sess := env.shell.Session()
	if execSave && sess.HasPendingChanges() {
		if err := sess.Save(ctx); err != nil {
			return fmt.Errorf("save failed: %w", err)
		}
	} else if sess.HasPendingChanges() {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: unsaved changes were not saved")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d lines failed", failed, len(lines))
	}
	return nil
}

func readScript(stdin io.Reader, path string) ([]string, error) {
	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	var lines []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return lines, nil
}
