// Package api embeds the gRPC service definitions served by the backend.
package api

import "embed"

// Protos holds the .proto files under proto/, addressed by the path used in grpc.ServiceDesc.Metadata
// (e.g. "blog/session/v1/session.proto").
//
//go:embed proto
var Protos embed.FS

// ReadProto returns the contents of the named service definition.
func ReadProto(name string) ([]byte, error) {
	return Protos.ReadFile("proto/" + name)
}
