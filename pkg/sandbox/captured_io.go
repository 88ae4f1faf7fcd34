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

package sandbox

import "bytes"

// CapturedIO buffers a guest module's stdout/stderr instead of letting it
// reach the host's own stdio. It is surfaced only through the orchestrator's
// structured log fields on a faulted or failed run, never printed directly.
type CapturedIO struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (c *CapturedIO) Stdout() *bytes.Buffer { return &c.stdout }
func (c *CapturedIO) Stderr() *bytes.Buffer { return &c.stderr }

func (c *CapturedIO) StdoutString() string { return c.stdout.String() }
func (c *CapturedIO) StderrString() string { return c.stderr.String() }
