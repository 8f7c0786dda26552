package rpc

import (
	"fmt"
	"regexp"
	"slices"

	"google.golang.org/grpc"

	"blog-platform/backend/api"
)

var (
	protoPackage = regexp.MustCompile(`(?m)^package\s+([\w.]+)\s*;`)
	protoService = regexp.MustCompile(`(?m)^service\s+(\w+)\s*\{`)
	protoRPC     = regexp.MustCompile(`rpc\s+(\w+)\s*\(\s*([\w.]+)\s*\)\s*returns\s*\(\s*([\w.]+)\s*\)`)
)

const structType = "google.protobuf.Struct"

// CheckContract reports whether desc serves exactly the RPCs its .proto file (desc.Metadata) declares,
// each taking and returning google.protobuf.Struct.
func CheckContract(desc *grpc.ServiceDesc) error {
	name, _ := desc.Metadata.(string)
	src, err := api.ReadProto(name)
	if err != nil {
		return fmt.Errorf("rpc: %s: %w", desc.ServiceName, err)
	}
	pkg := protoPackage.FindSubmatch(src)
	svc := protoService.FindSubmatch(src)
	if pkg == nil || svc == nil {
		return fmt.Errorf("rpc: %s: no package or service in %s", desc.ServiceName, desc.Metadata)
	}
	if name := string(pkg[1]) + "." + string(svc[1]); name != desc.ServiceName {
		return fmt.Errorf("rpc: %s declares service %s", desc.Metadata, name)
	}

	var declared []string
	for _, m := range protoRPC.FindAllSubmatch(src, -1) {
		if string(m[2]) != structType || string(m[3]) != structType {
			return fmt.Errorf("rpc: %s.%s must take and return %s", desc.ServiceName, m[1], structType)
		}
		declared = append(declared, string(m[1]))
	}
	served := make([]string, 0, len(desc.Methods))
	for _, md := range desc.Methods {
		served = append(served, md.MethodName)
	}
	slices.Sort(declared)
	slices.Sort(served)
	if !slices.Equal(declared, served) {
		return fmt.Errorf("rpc: %s serves %v, %s declares %v", desc.ServiceName, served, desc.Metadata, declared)
	}
	return nil
}
