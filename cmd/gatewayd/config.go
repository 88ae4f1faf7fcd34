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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sentryproc/pkg/permission"
	"sentryproc/pkg/sandbox"
)

// routeConfig is the on-disk shape of one route entry. timeoutMS is required
// per route; there is deliberately no fallback default (see pkg/orchestrator
// Route's doc comment).
type routeConfig struct {
	Pattern   string         `json:"pattern"`
	TimeoutMS int64          `json:"timeout_ms"`
	Plugins   []pluginConfig `json:"plugins"`
}

type pluginConfig struct {
	ReferenceName string                 `json:"reference_name"`
	WASMPath      string                 `json:"wasm_path"`
	GuestConfig   map[string]interface{} `json:"config"`
	Permissions   permissionConfig       `json:"permissions"`
}

type permissionConfig struct {
	HTTPDomains   []string `json:"http_domains"`
	StatePrefixes []string `json:"state_prefixes"`
	Env           []string `json:"env"`
}

func (p permissionConfig) toSandbox() sandbox.Permissions {
	return sandbox.Permissions{
		HTTPDomains:   permission.NewSet(p.HTTPDomains...),
		StatePrefixes: permission.NewSet(p.StatePrefixes...),
		Env:           permission.NewSet(p.Env...),
	}
}

func (p pluginConfig) toGuestConfig() (sandbox.GuestConfig, error) {
	gc := make(sandbox.GuestConfig, len(p.GuestConfig))
	for k, v := range p.GuestConfig {
		val, err := sandbox.ValueFromInterface(v)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: config key %q: %w", p.ReferenceName, k, err)
		}
		gc[k] = val
	}
	return gc, nil
}

func (r routeConfig) timeout() (time.Duration, error) {
	if r.TimeoutMS <= 0 {
		return 0, fmt.Errorf("route %q: timeout_ms must be > 0", r.Pattern)
	}
	return time.Duration(r.TimeoutMS) * time.Millisecond, nil
}

// loadRouteConfigs reads and decodes a JSON route table from path.
func loadRouteConfigs(path string) ([]routeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes config: %w", err)
	}
	var routes []routeConfig
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("parse routes config: %w", err)
	}
	return routes, nil
}
