// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tetratelabs/wazero"

	"sentryproc/pkg/decision"
	"sentryproc/pkg/sandbox"
	"sentryproc/pkg/state"
)

// entryPointName is the guest export every plugin module is invoked through.
const entryPointName = "_start"

var instanceSeq atomic.Uint64

// Instance is a fresh execution context created from a Descriptor for one
// request. It holds a non-owning reference back to the descriptor and to
// the shared host services; the descriptor outlives every instance created
// from it, so nothing here needs reference counting beyond normal GC.
type Instance struct {
	descriptor *Descriptor
	host       *sandbox.Host
	io         sandbox.CapturedIO
}

// Instantiate builds a fresh execution context: the request is frozen as
// shared read-only state, and config/permissions are shared references to
// descriptor. The wazero module instance itself is created lazily inside
// Run so that a caller which never calls Run never pays for instantiation.
func Instantiate(descriptor *Descriptor, request *sandbox.RequestInfo, bag *sandbox.ContextBag, stateClient *state.Client, httpDoer sandbox.HTTPDoer) *Instance {
	host := sandbox.NewHost(descriptor.GuestConfig, descriptor.loader.proxyHops, request, descriptor.Permissions, bag, stateClient, httpDoer)
	return &Instance{descriptor: descriptor, host: host}
}

// CapturedIO returns the guest module's buffered stdout/stderr from its most
// recent Run. It is meaningful only after Run has returned.
func (i *Instance) CapturedIO() *sandbox.CapturedIO { return &i.io }

// Run invokes the module's entry point and returns the decision and tags it
// wrote. Any uncaught fault inside the sandbox - a wazero trap or a panic
// escaping the host-function trampoline - is caught and reported as a
// FaultError rather than propagating. If the module never wrote a decision,
// the default ignorance decision is returned, per spec.
func (i *Instance) Run(ctx context.Context) (d decision.Decision, tags []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FaultError{Reference: i.descriptor.ReferenceName, Cause: fmt.Errorf("%v", r)}
		}
	}()

	cfg := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("%s-%d", i.descriptor.ReferenceName, instanceSeq.Add(1))).
		WithStdout(i.io.Stdout()).
		WithStderr(i.io.Stderr())
	mod, err := i.descriptor.loader.runtime.InstantiateModule(ctx, i.descriptor.compiled, cfg)
	if err != nil {
		return decision.Ignorance, nil, &FaultError{Reference: i.descriptor.ReferenceName, Cause: err}
	}
	defer mod.Close(ctx)

	entry := mod.ExportedFunction(entryPointName)
	if entry == nil {
		// A module with no entry point writes no decision; treat it like
		// the blank-slate plugin rather than a fault.
		return decision.Ignorance, nil, nil
	}

	runCtx := withHost(ctx, i.host)
	if _, err := entry.Call(runCtx); err != nil {
		if ctx.Err() != nil {
			return decision.Ignorance, nil, &TimeoutError{Reference: i.descriptor.ReferenceName}
		}
		return decision.Ignorance, nil, &FaultError{Reference: i.descriptor.ReferenceName, Cause: err}
	}

	return i.host.Decision(), i.host.Tags(), nil
}
