// Package serializer provides message serialization for the remote DBM service.
// It defines a common interface, two implementations and an adapter that plugs a
// serializer into grpc as its wire codec.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Replacing the default protobuf codec of grpc, so the messages of the
//     common package can be sent without generated code
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems. Keeps nil and empty byte slices apart
//     only where the field is not tagged omitempty.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding. Smaller
//     payloads for large values, but every empty slice decodes as nil.
//
//   - NewCodec: Wraps a serializer as a grpc encoding.Codec. The codec name is the
//     serializer name and becomes the content subtype ("application/grpc+json").
//     Client and server must use the same serializer.
//
//   - Discard: Receive target that skips decoding. Used to drain streams.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	codec := serializer.NewCodec(serializer.NewJSONSerializer())
//	conn, err := grpc.NewClient(target, grpc.WithDefaultCallOptions(grpc.ForceCodec(codec)))
package serializer
