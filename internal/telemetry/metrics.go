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

// Package telemetry is the gateway's Prometheus exporter, one dedicated
// registry wired into the orchestrator's request path.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the gateway's full set of exported series.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	PluginTimeoutsTotal  *prometheus.CounterVec
	PluginFaultsTotal    *prometheus.CounterVec
	DecisionDuration     prometheus.Histogram
	BlockedTotal         prometheus.Counter
	AllowedTotal         prometheus.Counter
}

// New registers and returns a fresh Metrics against registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Requests processed, by route pattern.",
		}, []string{"route"}),
		PluginTimeoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_plugin_timeouts_total",
			Help: "Plugin invocations that exceeded their route's timeout, by plugin reference name.",
		}, []string{"plugin"}),
		PluginFaultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_plugin_faults_total",
			Help: "Plugin invocations that trapped or panicked, by plugin reference name.",
		}, []string{"plugin"}),
		DecisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_decision_duration_seconds",
			Help:    "Time from route match to a combined decision.",
			Buckets: prometheus.DefBuckets,
		}),
		BlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_blocked_total",
			Help: "Requests answered with an immediate 403 block response.",
		}),
		AllowedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_allowed_total",
			Help: "Requests forwarded to the origin with a decision annotation.",
		}),
	}
	registry.MustRegister(m.RequestsTotal, m.PluginTimeoutsTotal, m.PluginFaultsTotal, m.DecisionDuration, m.BlockedTotal, m.AllowedTotal)
	return m
}
