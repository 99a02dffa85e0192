package serde_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/type/date"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/get-eventually/go-eventstore/serde"
)

type currency uint8

const (
	euro currency = iota + 1
	dollar
)

type deposit struct {
	Currency currency
	Cents    int64
}

type depositModel struct {
	Currency string `json:"currency"`
	Cents    int64  `json:"cents"`
}

var depositSerde = serde.Fuse[deposit, *depositModel](
	serde.SerializerFunc[deposit, *depositModel](func(d deposit) (*depositModel, error) {
		model := &depositModel{Cents: d.Cents}

		switch d.Currency {
		case euro:
			model.Currency = "EUR"
		case dollar:
			model.Currency = "USD"
		default:
			return nil, fmt.Errorf("unexpected currency, %v", d.Currency)
		}

		return model, nil
	}),
	serde.DeserializerFunc[deposit, *depositModel](func(model *depositModel) (deposit, error) {
		d := deposit{Cents: model.Cents}

		switch model.Currency {
		case "EUR":
			d.Currency = euro
		case "USD":
			d.Currency = dollar
		default:
			return deposit{}, fmt.Errorf("unexpected currency, %q", model.Currency)
		}

		return d, nil
	}),
)

func TestJSON(t *testing.T) {
	jsonSerde := serde.NewJSON(func() *depositModel { return new(depositModel) })

	data, err := jsonSerde.Serialize(&depositModel{Currency: "EUR", Cents: 150})
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency":"EUR","cents":150}`, string(data))

	model, err := jsonSerde.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, &depositModel{Currency: "EUR", Cents: 150}, model)

	_, err = jsonSerde.Deserialize([]byte(`{"currency":`))
	assert.Error(t, err)
}

func TestChained(t *testing.T) {
	chained := serde.Chain[deposit, *depositModel, []byte](
		depositSerde,
		serde.NewJSON(func() *depositModel { return new(depositModel) }),
	)

	t.Run("maps through the intermediate type", func(t *testing.T) {
		d := deposit{Currency: dollar, Cents: 12005}

		data, err := chained.Serialize(d)
		require.NoError(t, err)
		assert.JSONEq(t, `{"currency":"USD","cents":12005}`, string(data))

		deserialized, err := chained.Deserialize(data)
		require.NoError(t, err)
		assert.Equal(t, d, deserialized)
	})

	t.Run("first stage errors are returned", func(t *testing.T) {
		_, err := chained.Serialize(deposit{Cents: 1})
		assert.Error(t, err)

		_, err = chained.Deserialize([]byte(`{"currency":"GBP","cents":100}`))
		assert.Error(t, err)
	})
}

func TestProto(t *testing.T) {
	expected := &date.Date{Year: 2021, Month: 6, Day: 30}

	testCases := map[string]serde.Fused[*date.Date, []byte]{
		"binary": serde.NewProto(func() *date.Date { return new(date.Date) }),
		"json":   serde.NewProtoJSON(func() *date.Date { return new(date.Date) }),
	}

	for name, s := range testCases {
		t.Run(name, func(t *testing.T) {
			data, err := s.Serialize(expected)
			require.NoError(t, err)

			actual, err := s.Deserialize(data)
			require.NoError(t, err)
			assert.True(t, proto.Equal(expected, actual))
		})
	}

	t.Run("protojson uses the canonical field names", func(t *testing.T) {
		s := serde.NewProtoJSON(func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })

		data, err := s.Serialize(wrapperspb.String("hello"))
		require.NoError(t, err)
		assert.JSONEq(t, `"hello"`, string(data))

		_, err = s.Deserialize([]byte(`1`))
		assert.Error(t, err)
	})
}
