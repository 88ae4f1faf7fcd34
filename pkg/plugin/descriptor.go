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

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"sentryproc/pkg/sandbox"
)

// Descriptor is a compiled plugin module, immutable after Load. It is
// shared, read-only, across every Instance minted from it, and lives for
// the process lifetime.
type Descriptor struct {
	ReferenceName string
	GuestConfig   sandbox.GuestConfig
	Permissions   sandbox.Permissions

	loader   *Loader
	compiled wazero.CompiledModule
}

// Loader owns the one wazero runtime every descriptor compiles against and
// the host module every instance imports capabilities from. Compiling a
// module is comparatively expensive and is done exactly once per Load call;
// instantiation (Instance) is cheap and happens once per request.
type Loader struct {
	runtime   wazero.Runtime
	proxyHops uint8
}

// NewLoader constructs a Loader with a fresh wazero runtime and registers
// the bulwark:plugin host module every descriptor's instances import.
//
// WithCloseOnContextDone makes a hung or CPU-bound guest call actually
// abortable: without it wazero never polls the ctx passed to Run, so a
// route's per-request timeout would only ever take effect on a guest that
// happened to return on its own.
func NewLoader(ctx context.Context, proxyHops uint8) (*Loader, error) {
	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	l := &Loader{runtime: runtime, proxyHops: proxyHops}
	if err := l.registerHostModule(ctx); err != nil {
		runtime.Close(ctx)
		return nil, err
	}
	return l, nil
}

// Close releases the underlying wazero runtime and every compiled module.
func (l *Loader) Close(ctx context.Context) error { return l.runtime.Close(ctx) }

func (l *Loader) registerHostModule(ctx context.Context) error {
	_, err := l.runtime.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithFunc(l.hostCall).
		Export(hostCallFuncName).
		Instantiate(ctx)
	return err
}

// hostCall is the wazero-side trampoline for the ABI in abi.go: it reads the
// request envelope out of the calling module's linear memory, dispatches it
// against that instance's *sandbox.Host (recovered from ctx via
// hostFromContext), and writes the response envelope back into a buffer the
// guest allocated for it.
//
// reqPtr/reqLen locate the request; respBufPtr/respBufLen locate a
// guest-owned scratch buffer to write the response into. The return value is
// the number of bytes actually written, or 0 with the high bit set (1<<31)
// on truncation - the guest is expected to retry with a larger buffer.
func (l *Loader) hostCall(ctx context.Context, mod api.Module, reqPtr, reqLen, respBufPtr, respBufLen uint32) uint32 {
	mem := mod.Memory()
	reqBytes, ok := mem.Read(reqPtr, reqLen)
	if !ok {
		return 0
	}
	h := hostFromContext(ctx)
	if h == nil {
		return 0
	}
	respBytes := dispatchHostCall(ctx, h, reqBytes)
	if uint32(len(respBytes)) > respBufLen {
		return 1 << 31
	}
	if !mem.Write(respBufPtr, respBytes) {
		return 0
	}
	return uint32(len(respBytes))
}

// Load compiles moduleBytes once and returns a reusable Descriptor. Per spec,
// a load failure is a startup error for the caller to treat as fatal.
func (l *Loader) Load(ctx context.Context, referenceName string, moduleBytes []byte, guestConfig sandbox.GuestConfig, permissions sandbox.Permissions) (*Descriptor, error) {
	compiled, err := l.runtime.CompileModule(ctx, moduleBytes)
	if err != nil {
		return nil, &LoadError{Reference: referenceName, Cause: err}
	}
	return &Descriptor{
		ReferenceName: referenceName,
		GuestConfig:   guestConfig,
		Permissions:   permissions,
		loader:        l,
		compiled:      compiled,
	}, nil
}

// Close releases this descriptor's compiled module. Callers must not create
// new instances from it afterward.
func (d *Descriptor) Close(ctx context.Context) error { return d.compiled.Close(ctx) }

func (d *Descriptor) String() string {
	return fmt.Sprintf("plugin.Descriptor{%s}", d.ReferenceName)
}
