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

	"sentryproc/pkg/sandbox"
)

type hostContextKey struct{}

// withHost attaches h to ctx so that host-function calls wazero makes back
// into the Loader while the guest's entry point is running can recover the
// capability surface for that specific instance. wazero threads the same
// ctx through to every host function invoked during the call, so this
// travels with the request instead of needing a module-keyed registry.
func withHost(ctx context.Context, h *sandbox.Host) context.Context {
	return context.WithValue(ctx, hostContextKey{}, h)
}

func hostFromContext(ctx context.Context) *sandbox.Host {
	h, _ := ctx.Value(hostContextKey{}).(*sandbox.Host)
	return h
}
