package usermanagement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/usermanagement"
)

func TestParseUserDetails(t *testing.T) {
	t.Run("full user details", func(t *testing.T) {
		details, err := usermanagement.ParseUserDetails([]byte(`{
			"loginName": "admin",
			"fullName": "Event Store Administrator",
			"groups": ["$admins"],
			"dateLastUpdated": "2022-03-04T05:06:07.1234567Z",
			"disabled": false,
			"links": [
				{"href": "http://localhost:2113/users/admin", "rel": "edit"},
				{"href": "http://localhost:2113/users/admin/command/disable", "rel": "disable"}
			]
		}`))
		require.NoError(t, err)

		assert.Equal(t, "admin", details.LoginName)
		assert.Equal(t, "Event Store Administrator", details.FullName)
		assert.Equal(t, []string{"$admins"}, details.Groups)
		assert.False(t, details.Disabled)

		require.NotNil(t, details.DateLastUpdated)
		assert.Equal(t, time.Date(2022, 3, 4, 5, 6, 7, 123456700, time.UTC), details.DateLastUpdated.UTC())

		href, err := details.GetRelLink("DISABLE")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:2113/users/admin/command/disable", href)
	})

	t.Run("optional fields", func(t *testing.T) {
		details, err := usermanagement.ParseUserDetails([]byte(`{"loginName": "ops", "fullName": "Ops", "disabled": true}`))
		require.NoError(t, err)

		assert.Nil(t, details.DateLastUpdated)
		assert.Empty(t, details.Groups)
		assert.True(t, details.Disabled)
		assert.Zero(t, details.Links.Len())

		_, err = details.GetRelLink("edit")
		assert.ErrorIs(t, err, eventstore.ErrNotFound)
	})

	timestamps := map[string]time.Time{
		"2022-03-04T05:06:07Z":              time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC),
		"2022-03-04T07:06:07+02:00":         time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC),
		"2022-03-04T05:06:07.123456789012Z": time.Date(2022, 3, 4, 5, 6, 7, 123456789, time.UTC),
		"2022-03-04T05:06:07.5":             time.Date(2022, 3, 4, 5, 6, 7, 500000000, time.UTC),
		"2022-03-04T05:06:07":               time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	for value, expected := range timestamps {
		t.Run("timestamp "+value, func(t *testing.T) {
			details, err := usermanagement.ParseUserDetails(
				[]byte(`{"loginName": "a", "fullName": "b", "dateLastUpdated": "` + value + `"}`),
			)
			require.NoError(t, err)
			require.NotNil(t, details.DateLastUpdated)
			assert.True(t, expected.Equal(*details.DateLastUpdated), "got %s", details.DateLastUpdated)
		})
	}

	invalid := map[string]string{
		"malformed json":    `{"loginName": `,
		"missing loginName": `{"fullName": "b"}`,
		"missing fullName":  `{"loginName": "a"}`,
		"invalid link":      `{"loginName": "a", "fullName": "b", "links": [{"rel": "edit"}]}`,
		"invalid timestamp": `{"loginName": "a", "fullName": "b", "dateLastUpdated": "yesterday"}`,
	}

	for name, data := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := usermanagement.ParseUserDetails([]byte(data))
			assert.ErrorIs(t, err, eventstore.ErrInvalidArgument)
		})
	}
}
