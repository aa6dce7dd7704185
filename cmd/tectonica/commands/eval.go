package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type EvalCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	source   string
	varSpecs []string
	format   string
	engine   engineFlags
}

// NewEvalCommand returns the eval command.
func NewEvalCommand(rootCmd *RootCommand, app *kingpin.Application) *EvalCommand {
	c := &EvalCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("eval", "Evaluate a script in a fresh sandbox and print the result.")
	c.Cmd.Arg("source", "Script source to evaluate.").Required().StringVar(&c.source)
	c.Cmd.Flag("var", "Scoped variables (NAME=VALUE, values parse as JSON with a string fallback). Can be repeated.").Short('v').StringsVar(&c.varSpecs)
	c.Cmd.Flag("format", "Output format (plain, json).").Default("plain").EnumVar(&c.format, "plain", "json")
	c.engine.register(c.Cmd)

	return c
}

func (c EvalCommand) Name() string { return c.Cmd.FullCommand() }

func (c EvalCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	vars, err := parseVarSpecs(c.varSpecs)
	if err != nil {
		return fmt.Errorf("invalid --var value: %w", err)
	}

	// Spin up the sandbox.
	v, err := newVMFromSettings(c.engine.settings(), nil, logger)
	if err != nil {
		return err
	}
	if err := v.Init(ctx); err != nil {
		return fmt.Errorf("could not initialize sandbox: %w", err)
	}
	defer v.Teardown(ctx)

	// Evaluate, scoped when vars were given.
	var result any
	if len(vars) > 0 {
		result, err = v.ScopedEval(ctx, c.source, vars)
	} else {
		result, err = v.Eval(ctx, c.source)
	}
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	// Promises resolve before printing.
	result, err = v.Await(ctx, result)
	if err != nil {
		return fmt.Errorf("could not resolve result: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd)
	if err := p.PrintValue(result); err != nil {
		return fmt.Errorf("could not print result: %w", err)
	}

	return nil
}
