package printer

import (
	"encoding/json"
	"io"
	"math/big"
	"time"

	"github.com/swimmadude66/tectonica/internal/model"
)

// JSONPrinter prints results in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// valueOutput wraps an evaluation result so undefined and null stay
// distinguishable in the output.
type valueOutput struct {
	Value     any  `json:"value"`
	Undefined bool `json:"undefined,omitempty"`
}

// checkOutput represents one preflight check result.
type checkOutput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintValue prints an evaluation result in JSON format.
func (j *JSONPrinter) PrintValue(v any) error {
	out := valueOutput{Value: jsonValue(v)}
	if _, ok := v.(model.Undefined); ok {
		out.Value = nil
		out.Undefined = true
	}

	return j.encode(out)
}

// PrintChecks prints preflight check results in JSON format.
func (j *JSONPrinter) PrintChecks(results []model.CheckResult) error {
	items := make([]checkOutput, len(results))
	for i, r := range results {
		items[i] = checkOutput{
			ID:      r.ID,
			Message: r.Message,
			Status:  string(r.Status),
		}
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonValue adapts crossing specific types to their JSON friendly forms.
func jsonValue(v any) any {
	switch t := v.(type) {
	case *big.Int:
		return t.String()
	case model.Symbol:
		return string(t)
	case time.Time:
		return t.UTC()
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = jsonValue(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = jsonValue(el)
		}
		return out
	default:
		return v
	}
}
