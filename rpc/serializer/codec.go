package serializer

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Discard can be passed as the target of a receive call to drop a message
// without decoding it (used when draining a stream).
type Discard struct{}

// codec adapts an IRPCSerializer to the grpc encoding.Codec interface
type codec struct {
	serializer IRPCSerializer
}

// NewCodec wraps a serializer so it can be forced on grpc clients and servers
func NewCodec(s IRPCSerializer) encoding.Codec {
	return &codec{serializer: s}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see encoding.Codec)
// --------------------------------------------------------------------------

func (c *codec) Marshal(v any) ([]byte, error) {
	b, err := c.serializer.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("%s codec: failed to marshal %T: %w", c.serializer.Name(), v, err)
	}
	return b, nil
}

func (c *codec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(*Discard); ok {
		return nil
	}
	if err := c.serializer.Deserialize(data, v); err != nil {
		return fmt.Errorf("%s codec: failed to unmarshal %T: %w", c.serializer.Name(), v, err)
	}
	return nil
}

func (c *codec) Name() string {
	return c.serializer.Name()
}
