package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/contracts"
)

var (
	// ErrProcessExit matches *ProcessExitError
	ErrProcessExit = errors.New("model process exited with error")

	// ErrMalformedOutput matches *MalformedOutputError
	ErrMalformedOutput = errors.New("model process returned malformed output")

	// ErrProcessTimeout is returned when the model process exceeds its timeout
	ErrProcessTimeout = errors.New("model process timed out")
)

// ProcessExitError is a non-zero exit of the model process; Stderr is kept verbatim
type ProcessExitError struct {
	Script   string
	ExitCode int
	Stderr   string
}

func (e *ProcessExitError) Error() string {
	return fmt.Sprintf("model script %s exited with code %d: %s", e.Script, e.ExitCode, e.Stderr)
}

func (e *ProcessExitError) Is(target error) bool { return target == ErrProcessExit }

// MalformedOutputError is stdout that is not a valid response document
type MalformedOutputError struct {
	Script string
	Reason string
	Stdout string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("model script %s returned malformed output (%s)", e.Script, e.Reason)
}

func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

// DefaultScriptTimeout bounds one model process run
const DefaultScriptTimeout = 60 * time.Second

type externalRequest struct {
	Y      []float64 `json:"y"`
	Steps  int       `json:"steps"`
	Cutoff string    `json:"cutoff"`
}

type externalResponse struct {
	Yhat      *[]float64 `json:"yhat"`
	ModelName string     `json:"model_name"`
	Cutoff    string     `json:"cutoff"`
}

// External runs a model script under an interpreter:
//
//	<interpreter> <script> '{"y":[...],"steps":n,"cutoff":"YYYY-MM-DD"}'
//
// and reads {"yhat":[...],"model_name":"...","cutoff":"..."} from stdout.
type External struct {
	Key         string
	Interpreter string
	Script      string
	Timeout     time.Duration
	logger      zerolog.Logger
}

// NewExternal creates an external-process adapter
func NewExternal(key, interpreter, script string, timeout time.Duration, log zerolog.Logger) *External {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	return &External{
		Key:         key,
		Interpreter: interpreter,
		Script:      script,
		Timeout:     timeout,
		logger:      log.With().Str("component", "models.external").Str("model", key).Logger(),
	}
}

func (e *External) Name() string { return e.Key }

// defaultModelName is the script file name without extension
func (e *External) defaultModelName() string {
	base := filepath.Base(e.Script)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (e *External) Predict(ctx context.Context, train contracts.Series, steps int, targets []time.Time, params Params) (*contracts.ForecastResult, error) {
	if train.IsEmpty() {
		return nil, ErrEmptyTraining
	}
	idx, err := ResolveTargets(train, steps, targets)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(externalRequest{
		Y:      train.Values(),
		Steps:  len(idx),
		Cutoff: contracts.FormatDate(train.Last().Date),
	})
	if err != nil {
		return nil, fmt.Errorf("encode model request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.Interpreter, e.Script, string(payload))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %s", ErrProcessTimeout, e.Script, e.Timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, &ProcessExitError{Script: e.Script, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("start model script %s: %w", e.Script, runErr)
	}

	e.logger.Debug().
		Dur("elapsed", elapsed).
		Int("train", train.Len()).
		Int("targets", len(idx)).
		Msg("model script finished")

	return e.decode(stdout.Bytes(), idx, params)
}

func (e *External) decode(out []byte, idx []time.Time, params Params) (*contracts.ForecastResult, error) {
	malformed := func(reason string) error {
		return &MalformedOutputError{Script: e.Script, Reason: reason, Stdout: string(out)}
	}

	var resp externalResponse
	if err := json.Unmarshal(bytes.TrimSpace(out), &resp); err != nil {
		return nil, malformed("invalid JSON: " + err.Error())
	}
	if resp.Yhat == nil {
		return nil, malformed("missing yhat")
	}
	if len(*resp.Yhat) != len(idx) {
		return nil, malformed(fmt.Sprintf("yhat has %d values, expected %d", len(*resp.Yhat), len(idx)))
	}
	if resp.Cutoff == "" {
		return nil, malformed("missing cutoff")
	}
	cutoff, err := parseCutoff(resp.Cutoff)
	if err != nil {
		return nil, malformed("cutoff: " + err.Error())
	}

	name := resp.ModelName
	if name == "" {
		name = e.defaultModelName()
	}

	res, err := contracts.NewForecastResult(name, idx, *resp.Yhat)
	if err != nil {
		return nil, malformed(err.Error())
	}
	res.Params = params
	res.Cutoff = &cutoff
	return res, nil
}

var cutoffLayouts = []string{contracts.DateLayout, time.RFC3339, "2006-01-02T15:04:05"}

func parseCutoff(s string) (time.Time, error) {
	for _, layout := range cutoffLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
