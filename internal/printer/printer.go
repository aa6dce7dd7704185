// Package printer implements the CLI output formatting for evaluation
// results and preflight checks.
package printer

import "github.com/swimmadude66/tectonica/internal/model"

// Printer knows how to print evaluation results and check information in
// different formats.
type Printer interface {
	PrintValue(v any) error
	PrintChecks(results []model.CheckResult) error
	PrintMessage(msg string) error
}
