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
	"testing"
	"time"

	"sentryproc/pkg/sandbox"
	"sentryproc/pkg/state"
)

// restrictModule is a hand-assembled guest module (no compiler toolchain
// involved) that calls host_call twice against two data segments holding
// the request envelopes: one set_decision call reporting full restrict
// mass, one set_tags call reporting a single tag. It drives the bulwark:
// plugin ABI - encode-memory-write, host_call, decode-memory-read - the way
// a real compiled guest would, rather than exercising *sandbox.Host
// directly.
var restrictModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x0c, 0x02, 0x60,
	0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00, 0x02, 0x1c,
	0x01, 0x0e, 0x62, 0x75, 0x6c, 0x77, 0x61, 0x72, 0x6b, 0x3a, 0x70, 0x6c,
	0x75, 0x67, 0x69, 0x6e, 0x09, 0x68, 0x6f, 0x73, 0x74, 0x5f, 0x63, 0x61,
	0x6c, 0x6c, 0x00, 0x00, 0x03, 0x02, 0x01, 0x01, 0x05, 0x03, 0x01, 0x00,
	0x01, 0x07, 0x13, 0x02, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02,
	0x00, 0x06, 0x5f, 0x73, 0x74, 0x61, 0x72, 0x74, 0x00, 0x01, 0x0a, 0x22,
	0x01, 0x20, 0x00, 0x41, 0x00, 0x41, 0xc2, 0x00, 0x41, 0x80, 0xc0, 0x00,
	0x41, 0x80, 0x04, 0x10, 0x00, 0x1a, 0x41, 0xc2, 0x00, 0x41, 0x2f, 0x41,
	0x80, 0xc0, 0x00, 0x41, 0x80, 0x04, 0x10, 0x00, 0x1a, 0x0b, 0x0b, 0x7d,
	0x02, 0x00, 0x41, 0x00, 0x0b, 0x42, 0x7b, 0x22, 0x6f, 0x70, 0x22, 0x3a,
	0x22, 0x73, 0x65, 0x74, 0x5f, 0x64, 0x65, 0x63, 0x69, 0x73, 0x69, 0x6f,
	0x6e, 0x22, 0x2c, 0x22, 0x61, 0x72, 0x67, 0x73, 0x22, 0x3a, 0x7b, 0x22,
	0x41, 0x63, 0x63, 0x65, 0x70, 0x74, 0x22, 0x3a, 0x30, 0x2c, 0x22, 0x52,
	0x65, 0x73, 0x74, 0x72, 0x69, 0x63, 0x74, 0x22, 0x3a, 0x31, 0x2c, 0x22,
	0x55, 0x6e, 0x6b, 0x6e, 0x6f, 0x77, 0x6e, 0x22, 0x3a, 0x30, 0x7d, 0x7d,
	0x00, 0x41, 0xc2, 0x00, 0x0b, 0x2f, 0x7b, 0x22, 0x6f, 0x70, 0x22, 0x3a,
	0x22, 0x73, 0x65, 0x74, 0x5f, 0x74, 0x61, 0x67, 0x73, 0x22, 0x2c, 0x22,
	0x61, 0x72, 0x67, 0x73, 0x22, 0x3a, 0x7b, 0x22, 0x54, 0x61, 0x67, 0x73,
	0x22, 0x3a, 0x5b, 0x22, 0x6d, 0x61, 0x6c, 0x69, 0x63, 0x69, 0x6f, 0x75,
	0x73, 0x22, 0x5d, 0x7d, 0x7d,
}

// infiniteLoopModule is a hand-assembled guest whose _start never returns -
// a tight `loop / br 0` back-edge with no host call at all - used to drive
// a real unresponsive guest through Instance.Run's timeout path.
var infiniteLoopModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x0c, 0x02, 0x60,
	0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00, 0x03, 0x02,
	0x01, 0x01, 0x05, 0x03, 0x01, 0x00, 0x01, 0x07, 0x13, 0x02, 0x06, 0x6d,
	0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, 0x06, 0x5f, 0x73, 0x74, 0x61,
	0x72, 0x74, 0x00, 0x00, 0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c,
	0x00, 0x0b, 0x0b,
}

func TestRun_RestrictModule_SetsDecisionAndTagsThroughTheABI(t *testing.T) {
	ctx := context.Background()
	loader, err := NewLoader(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error creating loader: %v", err)
	}
	defer loader.Close(ctx)

	desc, err := loader.Load(ctx, "restrict", restrictModule, sandbox.GuestConfig{}, sandbox.Permissions{})
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	defer desc.Close(ctx)

	sc := state.New(noFakeBackend{}, nil)
	inst := Instantiate(desc, &sandbox.RequestInfo{Method: "GET", URI: "/"}, sandbox.NewContextBag(), sc, nil)

	d, tags, err := inst.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Restrict() != 1 || d.Accept() != 0 || d.Unknown() != 0 {
		t.Fatalf("expected full-restrict decision, got %+v", d)
	}
	if len(tags) != 1 || tags[0] != "malicious" {
		t.Fatalf("expected [malicious], got %v", tags)
	}
}

func TestRun_InfiniteLoopModule_TimesOut(t *testing.T) {
	ctx := context.Background()
	loader, err := NewLoader(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error creating loader: %v", err)
	}
	defer loader.Close(ctx)

	desc, err := loader.Load(ctx, "loop", infiniteLoopModule, sandbox.GuestConfig{}, sandbox.Permissions{})
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	defer desc.Close(ctx)

	sc := state.New(noFakeBackend{}, nil)
	inst := Instantiate(desc, &sandbox.RequestInfo{Method: "GET", URI: "/"}, sandbox.NewContextBag(), sc, nil)

	taskCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err = inst.Run(taskCtx)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("Run did not return promptly after the context deadline; WithCloseOnContextDone did not abort the guest")
	}
	if _, ok := err.(*TimeoutError); !ok {
		t.Fatalf("expected *TimeoutError, got %T (%v)", err, err)
	}
}
