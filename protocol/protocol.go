package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome is the structured result a driver reports back to the engine.
// Success and Error are mutually exclusive: Error is empty exactly when
// Success is true, and Output carries a value only on success.
type Outcome struct {
	Success bool            `json:"success"`
	Output  json.RawMessage `json:"output,omitempty"`
	Stdout  string          `json:"stdout"`
	Stderr  string          `json:"stderr"`
	Error   string          `json:"error,omitempty"`
}

// ErrNoOutcome indicates that the raw process output contained no
// parseable terminal JSON object.
type ErrNoOutcome struct{}

func (ErrNoOutcome) Error() string {
	return "no terminal outcome object found in process output"
}

// DecodeFinal scans raw process output from the end and decodes the last
// syntactically valid JSON object into an Outcome. Lines preceding the
// terminal object are tolerated so dependency-installation logs cannot
// break result parsing.
func DecodeFinal(raw string) (Outcome, error) {
	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		var outcome Outcome
		dec := json.NewDecoder(strings.NewReader(line))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&outcome); err != nil {
			continue
		}
		return outcome, nil
	}
	return Outcome{}, ErrNoOutcome{}
}

// Encode serializes an Outcome to a single-line JSON object. It is the
// inverse of DecodeFinal and exists mainly for tests and for the driver
// template.
func Encode(outcome Outcome) (string, error) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return "", fmt.Errorf("failed to encode outcome: %w", err)
	}
	return string(data), nil
}
