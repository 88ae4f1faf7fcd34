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
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sentryproc/pkg/decision"
	"sentryproc/pkg/plugin"
	"sentryproc/pkg/sandbox"
)

// pluginResult is the slot one fan-out task writes to. Each task owns its
// own index, so no lock is needed on the hot path - only the WaitGroup join
// barrier below.
type pluginResult struct {
	decision decision.Decision
	tags     []string
}

// fanOut spawns one task per plugin in route, each bounded by route.Timeout,
// and returns the combined decision and the union of every tag set. A
// failed task (timeout, or a fault, including a failed module
// instantiation) contributes the
// ignorance decision and no tags; it never cancels its siblings.
func fanOut(ctx context.Context, route *Route, appCtx *AppContext, req *sandbox.RequestInfo, bag *sandbox.ContextBag) (decision.Decision, []string) {
	results := make([]pluginResult, len(route.Plugins))
	var wg sync.WaitGroup
	wg.Add(len(route.Plugins))

	for i, descriptor := range route.Plugins {
		go func(i int, descriptor *plugin.Descriptor) {
			defer wg.Done()
			results[i] = runOnePlugin(ctx, descriptor, route.Timeout, appCtx, req, bag)
		}(i, descriptor)
	}
	wg.Wait()

	decisions := make([]decision.Decision, len(results))
	var tagSets [][]string
	for i, r := range results {
		decisions[i] = r.decision
		if len(r.tags) > 0 {
			tagSets = append(tagSets, r.tags)
		}
	}
	return decision.CombineAll(decisions...), UnionTags(tagSets...)
}

func runOnePlugin(ctx context.Context, descriptor *plugin.Descriptor, timeout time.Duration, appCtx *AppContext, req *sandbox.RequestInfo, bag *sandbox.ContextBag) pluginResult {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	inst := plugin.Instantiate(descriptor, req, bag, appCtx.State, appCtx.HTTPDoer)
	d, tags, err := inst.Run(taskCtx)
	if err == nil {
		return pluginResult{decision: d, tags: tags}
	}

	fields := []zap.Field{zap.String("plugin", descriptor.ReferenceName)}
	if stderr := inst.CapturedIO().StderrString(); stderr != "" {
		fields = append(fields, zap.String("stderr", stderr))
	}

	switch err.(type) {
	case *plugin.TimeoutError:
		appCtx.Metrics.PluginTimeoutsTotal.WithLabelValues(descriptor.ReferenceName).Inc()
		appCtx.Logger.Warn("plugin timed out", fields...)
	case *plugin.FaultError:
		appCtx.Metrics.PluginFaultsTotal.WithLabelValues(descriptor.ReferenceName).Inc()
		appCtx.Logger.Warn("plugin faulted", append(fields, zap.Error(err))...)
	default:
		appCtx.Logger.Warn("plugin failed", append(fields, zap.Error(err))...)
	}
	return pluginResult{decision: decision.Ignorance}
}
