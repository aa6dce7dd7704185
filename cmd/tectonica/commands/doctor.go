package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/swimmadude66/tectonica/internal/engine/quickjs"
	"github.com/swimmadude66/tectonica/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
	engine engineFlags
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the sandbox engine.")
	c.Cmd.Flag("format", "Output format (plain, json).").Default("plain").EnumVar(&c.format, "plain", "json")
	c.engine.register(c.Cmd)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	settings := c.engine.settings()
	eng, err := quickjs.NewEngine(quickjs.EngineConfig{
		MemoryLimitBytes: int64(settings.MemoryLimitMB) * 1024 * 1024,
		MaxStackBytes:    int64(settings.MaxStackKB) * 1024,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	results := eng.Check(ctx)

	p := newPrinter(c.format, c.rootCmd)
	if err := p.PrintChecks(results); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	if model.HasErrors(results) {
		return fmt.Errorf("preflight checks failed")
	}
	if model.HasWarnings(results) {
		logger.Warningf("preflight checks reported warnings")
	}

	return nil
}
