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

// Key layout for the two scripted primitives. Gateway-owned; plugins never
// address these directly, only through IncrRateLimit/IncrBreaker and friends
// with their own unprefixed key, which the sandbox layer has already
// permission-checked.

func rateLimitCounterKey(key string) string { return fmt.Sprintf("rl:%s", key) }
func rateLimitExpKey(key string) string     { return fmt.Sprintf("rl:%s:exp", key) }

func breakerGenerationKey(key string) string { return fmt.Sprintf("bk:g:%s", key) }
func breakerSuccessKey(key string) string    { return fmt.Sprintf("bk:s:%s", key) }
func breakerFailureKey(key string) string    { return fmt.Sprintf("bk:f:%s", key) }
func breakerConsecSuccessKey(key string) string { return fmt.Sprintf("bk:cs:%s", key) }
func breakerConsecFailureKey(key string) string { return fmt.Sprintf("bk:cf:%s", key) }
func breakerExpKey(key string) string           { return fmt.Sprintf("bk:%s:exp", key) }
