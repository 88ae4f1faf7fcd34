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

	"go.uber.org/zap"

	"sentryproc/pkg/sandbox"
)

// DefaultThreshold is the restrict-mass cutoff used when an AppContext
// doesn't set one explicitly; it matches the spec's stated default.
const DefaultThreshold = 0.5

const blockStatus = 403
const blockBody = "Bulwark says no."

// Processor drives one external-processor stream through the state machine:
// AwaitRequestHeaders -> Routing -> FanOut -> Combining -> Dispatched ->
// AwaitResponseHeaders -> Done.
type Processor struct {
	app *AppContext
}

// NewProcessor returns a Processor bound to app. app.Threshold of 0 is
// treated as "use DefaultThreshold", since 0 is never a meaningful
// rejection threshold on its own.
func NewProcessor(app *AppContext) *Processor {
	return &Processor{app: app}
}

func (p *Processor) threshold() float64 {
	if p.app.Threshold == 0 {
		return DefaultThreshold
	}
	return p.app.Threshold
}

// Process runs the full per-stream state machine. Only a malformed/absent
// request-headers message, or an unrecoverable stream I/O error, terminates
// early; every plugin-local failure has already degraded to the ignorance
// decision inside fanOut.
func (p *Processor) Process(stream ProcessingStream) error {
	ctx := stream.Context()

	// AwaitRequestHeaders
	msg, err := stream.Recv()
	if err != nil {
		p.app.Logger.Debug("stream closed before request headers arrived", zap.Error(err))
		return nil
	}
	if msg.RequestHeaders == nil {
		p.app.Logger.Warn("first message was not a request-headers message; closing stream")
		return nil
	}
	headers := msg.RequestHeaders.Headers
	method, path, scheme, authority := headers.First(":method"), headers.First(":path"), headers.First(":scheme"), headers.First(":authority")
	if method == "" || path == "" || scheme == "" || authority == "" {
		p.app.Logger.Warn("request-headers message missing a required pseudo-header",
			zap.String("method", method), zap.String("path", path), zap.String("scheme", scheme), zap.String("authority", authority))
		return nil
	}

	// Routing
	route, _, err := p.app.Router.Match(path)
	if err != nil {
		p.app.Logger.Info("no route matched", zap.String("path", path))
		return nil
	}
	p.app.Metrics.RequestsTotal.WithLabelValues(route.Pattern).Inc()

	req := &sandbox.RequestInfo{
		Method:      method,
		URI:         path,
		HTTPVersion: scheme,
		Headers:     map[string][]string(headers),
	}
	bag := sandbox.NewContextBag()

	// FanOut + Combining
	start := time.Now()
	combined, tags := fanOut(ctx, route, p.app, req, bag)
	p.app.Metrics.DecisionDuration.Observe(time.Since(start).Seconds())

	// Dispatched
	if combined.Accepted(p.threshold()) {
		p.app.Metrics.AllowedTotal.Inc()
		setHeaders := map[string]string{DecisionHeaderName: FormatDecisionHeader(combined)}
		if tagsHeader := FormatTagsHeader(tags); tagsHeader != "" {
			setHeaders[TagsHeaderName] = tagsHeader
		}
		if err := stream.Send(&ProcessingResponse{
			RequestHeadersMutation: &HeaderMutation{SetHeaders: setHeaders},
			DynamicMetadata:        DecisionMetadata(combined, tags),
		}); err != nil {
			p.app.Logger.Warn("failed to send request-headers mutation", zap.Error(err))
			return err
		}
	} else {
		p.app.Metrics.BlockedTotal.Inc()
		if err := stream.Send(&ProcessingResponse{ImmediateResponse: &ImmediateResponseMessage{Status: blockStatus, Body: blockBody}}); err != nil {
			p.app.Logger.Warn("failed to send immediate response", zap.Error(err))
			return err
		}
		return nil
	}

	// AwaitResponseHeaders (allow path only)
	msg, err = stream.Recv()
	if err != nil {
		p.app.Logger.Debug("stream closed before response headers arrived", zap.Error(err))
		return nil
	}
	if msg.ResponseHeaders != nil {
		if err := stream.Send(&ProcessingResponse{ResponseHeadersMutation: &HeaderMutation{
			SetHeaders: map[string]string{ProcessorHeaderName: ProcessorHeaderValue},
		}}); err != nil {
			p.app.Logger.Warn("failed to send response-headers mutation", zap.Error(err))
			return err
		}
	}

	// Done
	return nil
}
