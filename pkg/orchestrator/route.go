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
	"time"

	"sentryproc/pkg/plugin"
)

// Route binds a path pattern to an ordered plugin list and a required
// timeout. There is intentionally no package-level default timeout: every
// route must supply its own, since the only recorded default (200 microsec)
// is an implausible placeholder, not a value worth reproducing.
type Route struct {
	Pattern string
	Plugins []*plugin.Descriptor
	Timeout time.Duration
}
