package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/swimmadude66/tectonica/internal/model"
	"github.com/swimmadude66/tectonica/internal/printer"
)

type ReplCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	historyPath string
	engine      engineFlags
}

// NewReplCommand returns the repl command.
func NewReplCommand(rootCmd *RootCommand, app *kingpin.Application) *ReplCommand {
	c := &ReplCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("repl", "Interactive sandbox session.")
	defaultHistory := filepath.Join(homedir.HomeDir(), ".tectonica", "history")
	c.Cmd.Flag("history", "History file path.").Default(defaultHistory).StringVar(&c.historyPath)
	c.engine.register(c.Cmd)

	return c
}

func (c ReplCommand) Name() string { return c.Cmd.FullCommand() }

func (c ReplCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	v, err := newVMFromSettings(c.engine.settings(), nil, logger)
	if err != nil {
		return err
	}
	if err := v.Init(ctx); err != nil {
		return fmt.Errorf("could not initialize sandbox: %w", err)
	}
	defer v.Teardown(ctx)

	history, err := c.openHistory()
	if err != nil {
		// The REPL works without history, just tell the user.
		logger.Warningf("History disabled: %s", err)
	}
	if history != nil {
		defer history.Close()
	}

	p := printer.NewPlainPrinter(out)

	fmt.Fprintln(out, "tectonica repl (:drain pumps the microtask queue, :quit exits)")

	scanner := bufio.NewScanner(c.rootCmd.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if history != nil {
			fmt.Fprintln(history, line)
		}

		switch line {
		case ":quit":
			return nil
		case ":drain":
			n, err := v.DrainJobs(ctx)
			if err != nil {
				fmt.Fprintf(c.rootCmd.Stderr, "error: %s\n", err)
				continue
			}
			fmt.Fprintf(out, "%d job(s) ran\n", n)
			continue
		}

		result, err := v.Eval(ctx, line)
		if err == nil {
			result, err = v.Await(ctx, result)
		}
		if err != nil {
			var evalErr *model.EvaluationError
			if errors.As(err, &evalErr) {
				fmt.Fprintf(c.rootCmd.Stderr, "error: %s\n", evalErr.Message)
			} else {
				fmt.Fprintf(c.rootCmd.Stderr, "error: %s\n", err)
			}
			continue
		}

		if err := p.PrintValue(result); err != nil {
			return fmt.Errorf("could not print result: %w", err)
		}
	}

	return scanner.Err()
}

// openHistory opens the history file for appending, creating its directory
// when missing.
func (c ReplCommand) openHistory() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(c.historyPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create history dir: %w", err)
	}

	f, err := os.OpenFile(c.historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open history file: %w", err)
	}

	return f, nil
}
