// Package script runs the external prediction script and interprets its output.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrFailed wraps a non-zero exit or a script that could not be started.
var ErrFailed = errors.New("script: execution failed")

// Runner executes Command with Args followed by the comment text.
type Runner struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Output is what one run printed.
type Output struct {
	Stdout string
	Stderr string
}

// Run executes the script for text. A non-zero exit returns ErrFailed along
// with whatever the script printed.
func (r Runner) Run(ctx context.Context, text string) (Output, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	args := append(append([]string(nil), r.Args...), text)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if out.Stderr == "" {
			out.Stderr = err.Error()
		}
		return out, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return out, nil
}

// Prediction is the parsed script answer.
type Prediction struct {
	Label      string
	Confidence float64
	// ConfidenceValid is false when the script's confidence was not numeric.
	ConfidenceValid bool
}

// ErrInvalidOutput means stdout was not a prediction object.
var ErrInvalidOutput = errors.New("invalid prediction format")

// Parse reads the script's stdout: a JSON object with a non-empty label and a
// confidence. A confidence that is not numeric is reported through
// ConfidenceValid rather than as an error.
func Parse(stdout string) (Prediction, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &raw); err != nil {
		return Prediction{}, err
	}
	var label string
	if err := json.Unmarshal(raw["label"], &label); err != nil || label == "" {
		return Prediction{}, ErrInvalidOutput
	}
	conf, ok := raw["confidence"]
	if !ok {
		return Prediction{}, ErrInvalidOutput
	}
	p := Prediction{Label: label}
	p.Confidence, p.ConfidenceValid = parseConfidence(conf)
	return p, nil
}

var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseConfidence accepts a JSON number or a string starting with one.
func parseConfidence(raw json.RawMessage) (float64, bool) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
