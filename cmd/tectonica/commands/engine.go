package commands

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/swimmadude66/tectonica/internal/engine/quickjs"
	"github.com/swimmadude66/tectonica/internal/log"
	"github.com/swimmadude66/tectonica/internal/model"
	"github.com/swimmadude66/tectonica/internal/printer"
	"github.com/swimmadude66/tectonica/internal/vm"
)

// engineFlags are the sandbox engine flags shared by the commands that spin
// up a VM.
type engineFlags struct {
	memoryLimitMB int
	maxStackKB    int
	console       bool
}

func (f *engineFlags) register(cmd *kingpin.CmdClause) {
	cmd.Flag("memory-limit", "Sandbox heap limit in MB (0 = engine default).").IntVar(&f.memoryLimitMB)
	cmd.Flag("max-stack", "Sandbox stack limit in KB (0 = engine default).").IntVar(&f.maxStackKB)
	cmd.Flag("console", "Install a console object wired to the logger.").BoolVar(&f.console)
}

func (f *engineFlags) settings() model.EngineSettings {
	return model.EngineSettings{
		MemoryLimitMB: f.memoryLimitMB,
		MaxStackKB:    f.maxStackKB,
		Console:       f.console,
	}
}

// newVMFromSettings creates a VM over a QuickJS engine with the given
// settings. The VM is not initialized.
func newVMFromSettings(settings model.EngineSettings, globals map[string]any, logger log.Logger) (*vm.VM, error) {
	eng, err := quickjs.NewEngine(quickjs.EngineConfig{
		MemoryLimitBytes: int64(settings.MemoryLimitMB) * 1024 * 1024,
		MaxStackBytes:    int64(settings.MaxStackKB) * 1024,
		EnableConsole:    settings.Console,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	v, err := vm.NewVM(vm.VMConfig{
		Engine:  eng,
		Globals: globals,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create vm: %w", err)
	}

	return v, nil
}

// newPrinter selects the output printer for a format flag value.
func newPrinter(format string, rootCmd *RootCommand) printer.Printer {
	switch format {
	case "json":
		return printer.NewJSONPrinter(rootCmd.Stdout)
	default: // plain
		return printer.NewPlainPrinter(rootCmd.Stdout)
	}
}
