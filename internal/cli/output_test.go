package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textResult struct{ Name string }

func (r textResult) Text(w io.Writer) { fmt.Fprintf(w, "name is %s\n", r.Name) }

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitFailure, "failed")), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := WrapExitError(ExitCommandError, "failed to load log", errors.New("no such file"))
	assert.Equal(t, "failed to load log: no such file", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "no such file")
}

func TestOutputFormatterText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Success(textResult{Name: "g1"}))
	assert.Equal(t, "name is g1\n", buf.String())
}

func TestOutputFormatterJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, f.Success(textResult{Name: "g1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatterFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	want := NewExitError(ExitFailure, "2 problem(s) found")

	err := f.Failure(textResult{Name: "g1"}, want)
	require.ErrorIs(t, err, want)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ExitFailure, resp.Error.Code)
	assert.Equal(t, "2 problem(s) found", resp.Error.Message)
}
