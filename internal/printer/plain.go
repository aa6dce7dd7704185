package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/swimmadude66/tectonica/internal/model"
)

// PlainPrinter prints results in a human readable plain text format.
type PlainPrinter struct {
	writer io.Writer
}

// NewPlainPrinter creates a new plain text printer.
func NewPlainPrinter(w io.Writer) *PlainPrinter {
	return &PlainPrinter{writer: w}
}

// PrintValue prints an evaluation result: primitives as themselves,
// composites as indented JSON.
func (p *PlainPrinter) PrintValue(v any) error {
	_, err := fmt.Fprintln(p.writer, formatValue(v))
	return err
}

// PrintChecks prints preflight check results with a summary line.
func (p *PlainPrinter) PrintChecks(results []model.CheckResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(p.writer, "%s %-14s %s\n", statusIcon(r.Status), r.ID, r.Message); err != nil {
			return err
		}
	}

	ok, warnings, errs := model.CountByStatus(results)
	_, err := fmt.Fprintf(p.writer, "\n%d ok, %d warning(s), %d error(s)\n", ok, warnings, errs)
	return err
}

// PrintMessage prints a plain message.
func (p *PlainPrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(p.writer, msg)
	return err
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case model.Undefined:
		return "undefined"
	case string:
		return t
	case bool:
		return fmt.Sprintf("%t", t)
	case float64:
		// Whole numbers print without the decimal tail.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case *big.Int:
		return t.String() + "n"
	case model.Symbol:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
