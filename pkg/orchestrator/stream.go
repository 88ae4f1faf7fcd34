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

// Package orchestrator drives one external-processor stream per inbound
// request: route matching, plugin fan-out with timeout, decision
// combination, and dispatch of the allow or block response.
package orchestrator

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

// HeaderMap is a request or response header set, preserving the pseudo-
// headers (":method", ":path", ":scheme", ":authority") the fronting proxy
// sends alongside ordinary headers.
type HeaderMap map[string][]string

// First returns the first value for name, or "" if absent.
func (h HeaderMap) First(name string) string {
	if vs := h[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// RequestHeadersMessage is the inbound "request headers" variant.
type RequestHeadersMessage struct {
	Headers HeaderMap
}

// ResponseHeadersMessage is the inbound "response headers" variant,
// received only on the allow path once the origin has replied.
type ResponseHeadersMessage struct {
	Headers HeaderMap
}

// ProcessingRequest is one inbound message from the fronting proxy. Exactly
// one of its fields is set, mirroring the oneof a generated protobuf stub
// would produce.
type ProcessingRequest struct {
	RequestHeaders  *RequestHeadersMessage
	ResponseHeaders *ResponseHeadersMessage
}

// HeaderMutation instructs the proxy to add headers to the message it is
// currently processing.
type HeaderMutation struct {
	SetHeaders map[string]string
}

// ImmediateResponseMessage instructs the proxy to answer the request itself
// without forwarding it upstream.
type ImmediateResponseMessage struct {
	Status int
	Body   string
}

// ProcessingResponse is one outbound message to the fronting proxy. Exactly
// one of RequestHeadersMutation/ResponseHeadersMutation/ImmediateResponse is
// set; DynamicMetadata, when present, rides alongside whichever of those is
// set, mirroring Envoy's ext_proc ProcessingResponse where dynamic_metadata
// is a sibling field to the response oneof rather than part of it.
type ProcessingResponse struct {
	RequestHeadersMutation  *HeaderMutation
	ResponseHeadersMutation *HeaderMutation
	ImmediateResponse       *ImmediateResponseMessage
	DynamicMetadata         *structpb.Struct
}

// ProcessingStream is the bidirectional-streaming dialogue with the fronting
// proxy. It is shaped so that a generated gRPC stub for Envoy's ext_proc
// service satisfies it directly; the wire framing itself is an external
// collaborator this package never touches.
type ProcessingStream interface {
	Context() context.Context
	Recv() (*ProcessingRequest, error)
	Send(*ProcessingResponse) error
}
