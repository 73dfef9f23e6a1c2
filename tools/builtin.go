package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/stategraph/calc"
	"github.com/tailored-agentic-units/stategraph/core/protocol"
)

const (
	CalculatorName = "calculator"
	DatetimeName   = "datetime"
)

var calculatorTool = protocol.Tool{
	Name:        CalculatorName,
	Description: "Evaluates a basic arithmetic expression, e.g. '2 + 2 * 3'.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Numbers, + - * /, and parentheses.",
			},
		},
		"required": []string{"expression"},
	},
}

var datetimeTool = protocol.Tool{
	Name:        DatetimeName,
	Description: "Returns the current date and time in RFC3339 format.",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	},
}

// NewBuiltinRegistry returns a registry holding the calculator and datetime
// tools.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	mustRegister(r.Register(calculatorTool, handleCalculator))
	mustRegister(r.Register(datetimeTool, handleDatetime))
	return r
}

func mustRegister(err error) {
	if err != nil {
		panic(fmt.Sprintf("failed to register tool: %v", err))
	}
}

// CalculatorArgs encodes arguments for the calculator tool.
func CalculatorArgs(expression string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"expression": expression})
	return data
}

// handleCalculator reports evaluation failures as "calc error: ..." content
// rather than as a Go error, so the caller can show them to the user.
func handleCalculator(_ context.Context, raw json.RawMessage) (Result, error) {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Content: "invalid arguments: " + err.Error(), IsError: true}, nil
	}

	value, err := calc.Evaluate(args.Expression)
	if err != nil {
		return Result{Content: "calc error: " + err.Error(), IsError: true}, nil
	}
	return Result{Content: calc.Format(value)}, nil
}

func handleDatetime(_ context.Context, _ json.RawMessage) (Result, error) {
	return Result{Content: time.Now().Format(time.RFC3339)}, nil
}
