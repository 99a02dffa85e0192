package serde

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// NewJSON returns a Serde mapping T to and from JSON.
//
// The factory creates the zero values deserialization writes into,
// which is required when T uses pointer semantics.
func NewJSON[T any](factory func() T) Fused[T, []byte] {
	return Fuse[T, []byte](
		SerializerFunc[T, []byte](func(t T) ([]byte, error) {
			data, err := json.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("serde.JSON: failed to serialize %T, %w", t, err)
			}

			return data, nil
		}),
		DeserializerFunc[T, []byte](func(data []byte) (T, error) {
			model := factory()
			if err := json.Unmarshal(data, &model); err != nil {
				var zero T
				return zero, fmt.Errorf("serde.JSON: failed to deserialize %T, %w", model, err)
			}

			return model, nil
		}),
	)
}

// NewProto returns a Serde mapping a Protobuf message to and from its
// binary wire format.
func NewProto[T proto.Message](factory func() T) Fused[T, []byte] {
	return newProtobuf("serde.Proto", factory, proto.Marshal, proto.Unmarshal)
}

// NewProtoJSON returns a Serde mapping a Protobuf message to and from
// its canonical JSON encoding.
func NewProtoJSON[T proto.Message](factory func() T) Fused[T, []byte] {
	return newProtobuf("serde.ProtoJSON", factory, protojson.Marshal, protojson.Unmarshal)
}

func newProtobuf[T proto.Message](
	name string,
	factory func() T,
	marshal func(proto.Message) ([]byte, error),
	unmarshal func([]byte, proto.Message) error,
) Fused[T, []byte] {
	return Fuse[T, []byte](
		SerializerFunc[T, []byte](func(t T) ([]byte, error) {
			data, err := marshal(t)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to serialize %T, %w", name, t, err)
			}

			return data, nil
		}),
		DeserializerFunc[T, []byte](func(data []byte) (T, error) {
			model := factory()
			if err := unmarshal(data, model); err != nil {
				var zero T
				return zero, fmt.Errorf("%s: failed to deserialize %T, %w", name, model, err)
			}

			return model, nil
		}),
	)
}
