// Copyright 2025 CoreSet Selection Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor_test verifies the chain execution semantics: output-to-input
// piping, stop-on-error, continue-on-failure, and temp-file cleanup.
package cor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
)

// appendCommand appends its own name to the string it receives and records
// that it ran, which makes both the piping order and the chain's skip
// behavior observable.
type appendCommand struct {
	cor.BaseCommand
	fail     bool
	executed *[]string
}

func newAppendCommand(name string, fail bool, executed *[]string) *appendCommand {
	return &appendCommand{BaseCommand: *cor.NewBaseCommand(name), fail: fail, executed: executed}
}

// IsExecutable tolerates a missing input so the command still runs after an
// upstream failure broke the pipe.
func (c *appendCommand) IsExecutable(context cor.Context) bool {
	return context.GetContext() != nil
}

func (c *appendCommand) Execute(context cor.Context) {
	*c.executed = append(*c.executed, c.GetName())
	if c.fail {
		context.AddError(c.GetName(), errors.New("boom"))
		return
	}
	in, _ := context.Get(c.GetInputParam()).(string)
	context.Add(cor.CtxOut, in+c.GetName())
}

func newChainContext() cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	return ctx
}

func TestChainPipesOutputToInput(t *testing.T) {
	executed := make([]string, 0)
	chain := cor.NewBaseChain("pipe-test")
	chain.AddCommand(newAppendCommand("a", false, &executed))
	chain.AddCommand(newAppendCommand("b", false, &executed))
	chain.AddCommand(newAppendCommand("c", false, &executed))

	ctx := newChainContext()
	ctx.Add(cor.CtxIn, "")
	chain.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, []string{"a", "b", "c"}, executed)
	// Each command received the previous command's output.
	assert.Equal(t, "abc", ctx.Get(cor.CtxIn))
}

func TestChainStopsOnError(t *testing.T) {
	executed := make([]string, 0)
	chain := cor.NewBaseChain("stop-test")
	chain.AddCommand(newAppendCommand("a", false, &executed))
	chain.AddCommand(newAppendCommand("b", true, &executed))
	chain.AddCommand(newAppendCommand("c", false, &executed))

	ctx := newChainContext()
	ctx.Add(cor.CtxIn, "")
	chain.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	assert.Len(t, ctx.GetErrors(), 1)
	// "c" never ran, and the failed command produced no output to pipe.
	assert.Equal(t, []string{"a", "b"}, executed)
	assert.Nil(t, ctx.Get(cor.CtxIn))
}

func TestChainContinueOnFailure(t *testing.T) {
	executed := make([]string, 0)
	chain := cor.NewBaseChain("continue-test").ContinueOnFailure(true)
	chain.AddCommand(newAppendCommand("a", false, &executed))
	chain.AddCommand(newAppendCommand("b", true, &executed))
	chain.AddCommand(newAppendCommand("c", false, &executed))

	ctx := newChainContext()
	ctx.Add(cor.CtxIn, "")
	chain.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	assert.Equal(t, []string{"a", "b", "c"}, executed)
	// The failure broke the pipe, so "c" started from an empty input.
	assert.Equal(t, "c", ctx.Get(cor.CtxIn))
}

func TestContextCloseRemovesTempPaths(t *testing.T) {
	dir := t.TempDir()

	tempFile := filepath.Join(dir, "transient.txt")
	assert.NoError(t, os.WriteFile(tempFile, []byte("x"), 0o644))
	tempDir := filepath.Join(dir, "scratch")
	assert.NoError(t, os.MkdirAll(filepath.Join(tempDir, "nested"), 0o755))

	ctx := newChainContext()
	ctx.AddTempFile(tempFile)
	ctx.AddTempFile(tempDir)
	ctx.Close()

	_, err := os.Stat(tempFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tempDir)
	assert.True(t, os.IsNotExist(err))
}
