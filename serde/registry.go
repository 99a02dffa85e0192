package serde

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/message"
)

// Registry serializes Messages of different types, keyed by their name,
// so that Event Store backends can restore the right type from the
// name they stored next to the payload.
//
// Registries are meant to be filled at startup, and are not safe
// for concurrent registration.
type Registry struct {
	serdes map[string]Serde[message.Message, []byte]
}

// NewRegistry returns a new, empty Registry.
func NewRegistry() *Registry {
	return &Registry{serdes: make(map[string]Serde[message.Message, []byte])}
}

// Register adds the Serde of the Message type T to the Registry,
// using the name of the Message returned by the factory.
//
// An error is returned if another Message with the same name
// has already been registered.
func Register[T message.Message](r *Registry, factory func() T, s Serde[T, []byte]) error {
	name := factory().Name()
	if name == "" {
		return fmt.Errorf("serde.Registry: message %T has an empty name, %w", factory(), eventstore.ErrInvalidArgument)
	}

	if _, ok := r.serdes[name]; ok {
		return fmt.Errorf("serde.Registry: message %q already registered, %w", name, eventstore.ErrInvalidArgument)
	}

	r.serdes[name] = Fuse[message.Message, []byte](
		SerializerFunc[message.Message, []byte](func(msg message.Message) ([]byte, error) {
			t, ok := msg.(T)
			if !ok {
				return nil, fmt.Errorf("serde.Registry: unexpected type %T for message %q, %w",
					msg, name, eventstore.ErrInvalidArgument)
			}

			return s.Serialize(t)
		}),
		DeserializerFunc[message.Message, []byte](func(data []byte) (message.Message, error) {
			return s.Deserialize(data)
		}),
	)

	return nil
}

// RegisterJSON registers the Message type T using the JSON encoding.
func RegisterJSON[T message.Message](r *Registry, factory func() T) error {
	return Register(r, factory, NewJSON(factory))
}

// RegisterProtoJSON registers a Protobuf Message type T
// using the Protobuf JSON encoding.
func RegisterProtoJSON[T interface {
	message.Message
	proto.Message
}](r *Registry, factory func() T) error {
	return Register(r, factory, NewProtoJSON(factory))
}

// Len returns the number of Message types registered.
func (r *Registry) Len() int { return len(r.serdes) }

// Serialize serializes the Message using the Serde registered for its name.
func (r *Registry) Serialize(msg message.Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("serde.Registry: nil message, %w", eventstore.ErrInvalidArgument)
	}

	s, ok := r.serdes[msg.Name()]
	if !ok {
		return nil, fmt.Errorf("serde.Registry: message %q not registered, %w", msg.Name(), eventstore.ErrNotFound)
	}

	data, err := s.Serialize(msg)
	if err != nil {
		return nil, fmt.Errorf("serde.Registry: failed to serialize message %q, %w", msg.Name(), err)
	}

	return data, nil
}

// Deserialize restores the Message registered with the specified name.
func (r *Registry) Deserialize(name string, data []byte) (message.Message, error) {
	s, ok := r.serdes[name]
	if !ok {
		return nil, fmt.Errorf("serde.Registry: message %q not registered, %w", name, eventstore.ErrNotFound)
	}

	msg, err := s.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("serde.Registry: failed to deserialize message %q, %w", name, err)
	}

	return msg, nil
}
