package serde

import "fmt"

// Chained maps from a Src to a Dst type by going through
// an intermediate type (Mid), using two separate Serdes.
//
// A typical use is mapping a Domain Event to its storage model first,
// and then the storage model to bytes.
type Chained[Src any, Mid any, Dst any] struct {
	first  Serde[Src, Mid]
	second Serde[Mid, Dst]
}

// Chain chains together two Serdes to map from Src to Dst types.
func Chain[Src any, Mid any, Dst any](first Serde[Src, Mid], second Serde[Mid, Dst]) Chained[Src, Mid, Dst] {
	return Chained[Src, Mid, Dst]{first: first, second: second}
}

// Serialize implements the serde.Serializer interface.
func (c Chained[Src, Mid, Dst]) Serialize(src Src) (Dst, error) {
	var dst Dst

	mid, err := c.first.Serialize(src)
	if err != nil {
		return dst, fmt.Errorf("serde.Chained: failed to serialize to intermediate type, %w", err)
	}

	if dst, err = c.second.Serialize(mid); err != nil {
		return dst, fmt.Errorf("serde.Chained: failed to serialize from intermediate type, %w", err)
	}

	return dst, nil
}

// Deserialize implements the serde.Deserializer interface.
func (c Chained[Src, Mid, Dst]) Deserialize(dst Dst) (Src, error) {
	var src Src

	mid, err := c.second.Deserialize(dst)
	if err != nil {
		return src, fmt.Errorf("serde.Chained: failed to deserialize to intermediate type, %w", err)
	}

	if src, err = c.first.Deserialize(mid); err != nil {
		return src, fmt.Errorf("serde.Chained: failed to deserialize from intermediate type, %w", err)
	}

	return src, nil
}
