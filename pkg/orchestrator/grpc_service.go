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
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// grpcStream adapts one gRPC server stream onto ProcessingStream. It carries
// no logic of its own: Processor.Process never needs to know it's talking
// over gRPC.
type grpcStream struct {
	ctx  context.Context
	recv func() (*ProcessingRequest, error)
	send func(*ProcessingResponse) error
}

func (s *grpcStream) Context() context.Context           { return s.ctx }
func (s *grpcStream) Recv() (*ProcessingRequest, error)   { return s.recv() }
func (s *grpcStream) Send(resp *ProcessingResponse) error { return s.send(resp) }

// Service is the gRPC-facing external-processor service: one Processor
// serves every stream, since Processor itself holds no per-stream state.
type Service struct {
	processor *Processor
}

// NewService returns a Service that dispatches every stream to app.
func NewService(app *AppContext) *Service {
	return &Service{processor: NewProcessor(app)}
}

// Process adapts one gRPC stream's recv/send pair onto ProcessingStream and
// runs it through the processor's state machine.
func (s *Service) Process(ctx context.Context, recv func() (*ProcessingRequest, error), send func(*ProcessingResponse) error) error {
	return s.processor.Process(&grpcStream{ctx: ctx, recv: recv, send: send})
}

// messageCodecName names the wire codec registered below. Envoy's real
// ext_proc side-channel carries protobuf messages generated from its own
// .proto file; this gateway's message shapes (ProcessingRequest/Response in
// stream.go) are plain Go structs, so a JSON codec is registered instead of
// requiring a generated protobuf stub that isn't part of this module. Any
// gRPC client this service talks to must negotiate the same codec.
const messageCodecName = "bulwark-json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return messageCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// serviceName is this gateway's own ext_proc-shaped gRPC service, distinct
// from (but structurally equivalent to) Envoy's
// envoy.service.ext_proc.v3.ExternalProcessor.
const serviceName = "bulwark.gateway.v1.ExternalProcessor"

// serviceDesc registers the single bidi-streaming "Process" method every
// Service implements.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Process",
			Handler:       processStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

func processStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	service, ok := srv.(*Service)
	if !ok {
		return fmt.Errorf("orchestrator: unexpected service type %T", srv)
	}
	recv := func() (*ProcessingRequest, error) {
		req := new(ProcessingRequest)
		if err := stream.RecvMsg(req); err != nil {
			return nil, err
		}
		return req, nil
	}
	send := func(resp *ProcessingResponse) error {
		return stream.SendMsg(resp)
	}
	return service.Process(stream.Context(), recv, send)
}

// RegisterExternalProcessor wires service onto grpcServer. grpcServer must
// have been constructed with grpc.ForceServerCodec(jsonCodec{}) (see
// ServerOptions) so the plain ProcessingRequest/ProcessingResponse structs
// round-trip without a generated protobuf type.
func RegisterExternalProcessor(grpcServer *grpc.Server, service *Service) {
	grpcServer.RegisterService(&serviceDesc, service)
}

// ServerOptions returns the grpc.ServerOption set a caller must pass to
// grpc.NewServer for RegisterExternalProcessor's registration to work.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(jsonCodec{})}
}
