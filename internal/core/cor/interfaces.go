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

// Package cor (Chain of Responsibility) provides the building blocks for
// expressing workflows as an ordered sequence of commands. A Chain executes
// its commands in order, piping the output of each command into the input of
// the next through a shared Context. Commands record errors and temporary
// files on the Context rather than returning them, which lets a chain decide
// whether to stop or to keep going when a step fails.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys used to manage the primary data flow within a
// BaseChain. After each command runs, the chain moves the value stored under
// CtxOut to CtxIn so the next command finds its input in the default place.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context is the shared state object passed through a chain of commands. It
// acts as a property bag for a single workflow execution, carrying data,
// errors, and temp-file bookkeeping between commands.
type Context interface {
	// SetContext sets the standard Go context, used for cancellation and
	// OpenTelemetry trace propagation.
	SetContext(context context.Context)

	// GetContext retrieves the standard Go context.
	GetContext() context.Context

	// Add stores a key-value pair, returning the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records an error produced by a command. The key should be the
	// name of the command that produced it.
	AddError(key string, err error)

	// GetErrors returns all errors collected during the workflow.
	GetErrors() map[string]error

	// Get retrieves a value by key, or nil when absent.
	Get(key string) interface{}

	// Remove deletes a key-value pair.
	Remove(key string)

	// HasErrors reports whether any error has been recorded.
	HasErrors() bool

	// AddTempFile tracks a transient file or directory created during the
	// workflow so Close can remove it.
	AddTempFile(file string)

	// GetTempFiles returns all tracked transient paths.
	GetTempFiles() []string

	// Close removes every tracked transient path. Callers should defer it at
	// the start of a workflow.
	Close()
}

// Executable is the minimal unit of behavior: something with core execution
// logic that reads inputs from and writes outputs to a Context.
type Executable interface {
	Execute(context Context)
}

// Command represents an atomic, testable unit of work and is the fundamental
// building block of a workflow.
type Command interface {
	Executable

	// GetName returns the command's unique name, used for logging, tracing,
	// and metric naming.
	GetName() string

	// GetInputParam returns the context key the command reads its primary
	// input from.
	GetInputParam() string

	// GetOutputParam returns the context key the command writes its primary
	// output to.
	GetOutputParam() string

	// IsExecutable is a precondition check run before Execute.
	IsExecutable(context Context) bool

	// GetTracer returns the OpenTelemetry tracer for this command.
	GetTracer() trace.Tracer

	// GetMeter returns the OpenTelemetry meter for creating metrics.
	GetMeter() metric.Meter

	// GetSuccessCounter returns the counter incremented on success.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns the counter incremented on failure.
	GetErrorCounter() metric.Int64Counter
}

// Chain is a sequence of commands. A Chain is itself a Command, so chains can
// be nested to compose larger workflows.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the chain keeps executing commands
	// after one of them records an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}
