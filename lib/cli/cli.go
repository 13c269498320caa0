// Package cli is the tileshow command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tileshow/lib/config"
	"tileshow/lib/logging"
	"tileshow/lib/project"
	"tileshow/lib/show"
)

var (
	cfg         config.Config
	projectPath string
	verbosity   int

	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen)
	bad     = color.New(color.FgRed)
	dim     = color.New(color.FgHiBlack)
)

func NewRootCmd() *cobra.Command {
	cfg = config.Load()

	cmd := &cobra.Command{
		Use:           "tileshow",
		Short:         "Run a tile-based lighting show over DMX, Art-Net and WLED",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&projectPath, "project", "p", cfg.ProjectPath, "project file")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase logging (-v, -vv, ... up to 4)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.SetVerbosity(verbosity)
	}

	cmd.AddCommand(
		newPlayCmd(),
		newTilesCmd(),
		newGroupsCmd(),
		newFixturesCmd(),
		newOutputsCmd(),
		newMockCmd(),
		newShellCmd(),
	)
	return cmd
}

func openShow() (*show.Show, error) {
	store, err := project.NewFileStore(projectPath)
	if err != nil {
		return nil, err
	}
	return show.Load(store)
}

// editShow loads the project, applies fn and saves if fn changed anything.
func editShow(fn func(s *show.Show) error) error {
	s, err := openShow()
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return s.Save()
}

func newShellCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run tileshow commands interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveShell(prompt, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "tileshow> ", "prompt string")
	return cmd
}

func runInteractiveShell(prompt string, w io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), "tileshow-shell.history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	session := shellSession{verbosity: verbosity, project: projectPath, out: w}
	fmt.Fprintln(w, "Type 'help' for commands, 'exit' to leave.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Fprintln(w)
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(w)
			return nil
		}
		if err != nil {
			return err
		}
		if done := session.run(line); done {
			return nil
		}
	}
}

type shellSession struct {
	verbosity int
	project   string
	out       io.Writer
}

// run executes one shell line and reports whether the shell should exit.
func (s *shellSession) run(line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "exit", "quit":
		return true
	case "help":
		printShellHelp(s.out)
		return false
	}
	tokens, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(s.out, "parse error: %v\n", err)
		return false
	}
	if len(tokens) == 0 {
		return false
	}
	switch tokens[0] {
	case "log":
		if err := s.handleLog(tokens[1:]); err != nil {
			fmt.Fprintf(s.out, "log: %v\n", err)
		}
		return false
	case "shell":
		fmt.Fprintln(s.out, "already in the shell")
		return false
	}

	args := []string{"--project", s.project}
	if s.verbosity > 0 {
		args = append(args, fmt.Sprintf("--verbose=%d", s.verbosity))
	}
	if err := executeArgs(s.out, append(args, tokens...)); err != nil {
		bad.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

func executeArgs(w io.Writer, args []string) error {
	root := NewRootCmd()
	root.SetOut(w)
	root.SetErr(w)
	root.SetArgs(args)
	return root.Execute()
}

func (s *shellSession) handleLog(args []string) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var vcount int
	var level string
	fs.CountVarP(&vcount, "verbose", "v", "increase verbosity")
	fs.StringVar(&level, "level", "", "error|warn|info|debug|trace")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case level != "":
		_, count, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}
		s.verbosity = count
	case vcount > 0:
		s.verbosity = vcount
	default:
		fmt.Fprintf(s.out, "log level: %s (-v x%d)\n", logging.CurrentLevel(), logging.Verbosity())
		return nil
	}
	logging.SetVerbosity(s.verbosity)
	fmt.Fprintf(s.out, "log level set to %s (-v x%d)\n", logging.CurrentLevel(), logging.Verbosity())
	return nil
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, `Examples:
  tiles list                      # tiles with state and level
  tiles toggle <tile>             # fade a tile in or out
  tiles strength <tile> 0.5       # set a tile's strength
  groups list                     # groups and their targets
  groups candidates <group>       # targets that may be added
  groups add <group> <target>     # group:<id> or patch/output/fixture[,...]
  fixtures list                   # fixtures of the active patch
  outputs list                    # outputs of the active patch
  log -vv | log --level debug     # change log verbosity
  exit / quit`)
}
