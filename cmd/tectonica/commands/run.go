package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	storageio "github.com/swimmadude66/tectonica/internal/storage/io"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	manifestPath string
	extraScripts []string
	format       string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the scripts of a YAML manifest in one sandbox.")
	c.Cmd.Arg("manifest", "Manifest file path.").Required().StringVar(&c.manifestPath)
	c.Cmd.Arg("scripts", "Extra script files evaluated after the manifest ones.").StringsVar(&c.extraScripts)
	c.Cmd.Flag("format", "Output format (plain, json).").Default("plain").EnumVar(&c.format, "plain", "json")

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Load the manifest. Script paths resolve relative to it.
	dir := filepath.Dir(c.manifestPath)
	repo := storageio.NewManifestYAMLRepository(os.DirFS(dir))
	manifest, err := repo.GetManifest(ctx, filepath.Base(c.manifestPath))
	if err != nil {
		return fmt.Errorf("could not load manifest: %w", err)
	}

	// Spin up the sandbox with the manifest globals preregistered.
	v, err := newVMFromSettings(manifest.Engine, manifest.Globals, logger)
	if err != nil {
		return err
	}
	if err := v.Init(ctx); err != nil {
		return fmt.Errorf("could not initialize sandbox: %w", err)
	}
	defer v.Teardown(ctx)

	// Evaluate the scripts in order, in the same sandbox. The last script's
	// completion value is the run result.
	var result any
	for _, script := range append(manifest.Scripts, c.extraScripts...) {
		src, err := os.ReadFile(filepath.Join(dir, script))
		if err != nil {
			return fmt.Errorf("could not read script %q: %w", script, err)
		}

		logger.Debugf("Evaluating %q", script)
		result, err = v.Eval(ctx, string(src))
		if err != nil {
			return fmt.Errorf("script %q failed: %w", script, err)
		}

		// Settle anything the script queued before the next one runs.
		if _, err := v.DrainJobs(ctx); err != nil {
			return fmt.Errorf("script %q left a broken microtask queue: %w", script, err)
		}
	}

	result, err = v.Await(ctx, result)
	if err != nil {
		return fmt.Errorf("could not resolve run result: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd)
	if err := p.PrintValue(result); err != nil {
		return fmt.Errorf("could not print result: %w", err)
	}

	return nil
}
