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

package orchestrator

import (
	"go.uber.org/zap"

	"sentryproc/internal/telemetry"
	"sentryproc/pkg/router"
	"sentryproc/pkg/sandbox"
	"sentryproc/pkg/state"
)

// AppContext threads every process-wide dependency explicitly: the router
// and state client are effectively process-wide, but they are passed by
// reference rather than kept as ambient package-level singletons.
type AppContext struct {
	Router   *router.Router[*Route]
	State    *state.Client
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	HTTPDoer sandbox.HTTPDoer

	// Threshold is the restrict-mass cutoff Accepted uses to decide
	// allow vs. block. The spec's default is 0.5.
	Threshold float64
}
