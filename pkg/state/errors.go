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

package state

import "fmt"

// RemoteError wraps a failure reported by the backing store itself.
type RemoteError struct{ Msg string }

func (e *RemoteError) Error() string { return fmt.Sprintf("remote: %s", e.Msg) }

// TypeError reports that a stored value could not be coerced to the type an
// operation expected.
type TypeError struct{ Msg string }

func (e *TypeError) Error() string { return fmt.Sprintf("type error: %s", e.Msg) }

// InvalidArgumentError reports a caller-supplied argument that violates an
// operation's preconditions (e.g. a negative delta).
type InvalidArgumentError struct{ Msg string }

func (e *InvalidArgumentError) Error() string { return fmt.Sprintf("invalid argument: %s", e.Msg) }

// PermissionError reports that a plugin is not permitted to touch Key. It is
// defined here because it belongs to the same error taxonomy as the rest of
// the state-client surface, but it is raised by the sandbox layer (see
// pkg/permission) before a call ever reaches the backend, never by Client
// itself.
type PermissionError struct{ Key string }

func (e *PermissionError) Error() string { return fmt.Sprintf("permission denied for key %q", e.Key) }
