package usermanagement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/usermanagement"
)

func TestLinks(t *testing.T) {
	raw := []usermanagement.RawRelLink{
		{Rel: "self", Href: "/a"},
		{Rel: "SELF", Href: "/b"},
		{Rel: "edit", Href: "/users/admin"},
	}

	links, err := usermanagement.LinksFrom(raw)
	require.NoError(t, err)

	t.Run("first match wins, ignoring case", func(t *testing.T) {
		href, err := links.Get("SELF")
		require.NoError(t, err)
		assert.Equal(t, "/a", href)

		href, err = links.Get("Edit")
		require.NoError(t, err)
		assert.Equal(t, "/users/admin", href)
	})

	t.Run("missing rel is not found", func(t *testing.T) {
		_, err := links.Get("missing")
		assert.ErrorIs(t, err, usermanagement.ErrRelNotFound)
		assert.ErrorIs(t, err, eventstore.ErrNotFound)
	})

	t.Run("order and content are preserved", func(t *testing.T) {
		assert.Equal(t, raw, links.Raw())
		assert.Equal(t, 3, links.Len())

		all := links.All()
		require.Len(t, all, 3)
		assert.Equal(t, "SELF", all[1].Rel())
		assert.Equal(t, "/b", all[1].Href())
	})

	t.Run("returned links are copies", func(t *testing.T) {
		all := links.All()
		all[0], _ = usermanagement.NewRelLink("self", "/changed")

		href, err := links.Get("self")
		require.NoError(t, err)
		assert.Equal(t, "/a", href)
	})

	t.Run("empty links", func(t *testing.T) {
		empty := usermanagement.NewLinks()
		assert.Zero(t, empty.Len())

		_, err := empty.Get("self")
		assert.ErrorIs(t, err, usermanagement.ErrRelNotFound)
	})

	t.Run("invalid raw links are rejected", func(t *testing.T) {
		_, err := usermanagement.LinksFrom([]usermanagement.RawRelLink{{Rel: "self"}})
		assert.ErrorIs(t, err, eventstore.ErrInvalidArgument)

		_, err = usermanagement.LinksFrom([]usermanagement.RawRelLink{{Href: "/a"}})
		assert.ErrorIs(t, err, eventstore.ErrInvalidArgument)
	})
}
