package usermanagement

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/get-eventually/go-eventstore"
)

// UserDetails describes an Event Store user.
type UserDetails struct {
	LoginName       string
	FullName        string
	Groups          []string
	DateLastUpdated *time.Time
	Disabled        bool
	Links           Links
}

type rawUserDetails struct {
	LoginName       *string      `json:"loginName"`
	FullName        *string      `json:"fullName"`
	Groups          []string     `json:"groups"`
	DateLastUpdated *string      `json:"dateLastUpdated"`
	Disabled        bool         `json:"disabled"`
	Links           []RawRelLink `json:"links"`
}

// ParseUserDetails decodes the JSON representation of a user.
//
// The login and full names are required; a missing last update
// date is left nil.
func ParseUserDetails(data []byte) (UserDetails, error) {
	var raw rawUserDetails

	if err := json.Unmarshal(data, &raw); err != nil {
		return UserDetails{}, fmt.Errorf("usermanagement.ParseUserDetails: malformed input, %v, %w",
			err, eventstore.ErrInvalidArgument)
	}

	if raw.LoginName == nil {
		return UserDetails{}, fmt.Errorf("usermanagement.ParseUserDetails: missing loginName, %w",
			eventstore.ErrInvalidArgument)
	}

	if raw.FullName == nil {
		return UserDetails{}, fmt.Errorf("usermanagement.ParseUserDetails: missing fullName, %w",
			eventstore.ErrInvalidArgument)
	}

	links, err := LinksFrom(raw.Links)
	if err != nil {
		return UserDetails{}, fmt.Errorf("usermanagement.ParseUserDetails: %w", err)
	}

	details := UserDetails{
		LoginName: *raw.LoginName,
		FullName:  *raw.FullName,
		Groups:    raw.Groups,
		Disabled:  raw.Disabled,
		Links:     links,
	}

	if details.Groups == nil {
		details.Groups = []string{}
	}

	if raw.DateLastUpdated != nil {
		t, err := parseTimestamp(*raw.DateLastUpdated)
		if err != nil {
			return UserDetails{}, fmt.Errorf("usermanagement.ParseUserDetails: invalid dateLastUpdated, %w", err)
		}

		details.DateLastUpdated = &t
	}

	return details, nil
}

// GetRelLink returns the target of the first link with the specified
// relation, ignoring case.
func (u UserDetails) GetRelLink(rel string) (string, error) {
	return u.Links.Get(rel)
}

const zonelessLayout = "2006-01-02T15:04:05.999999999"

// parseTimestamp accepts RFC3339 timestamps, with fractional seconds of
// any precision, and zoneless ones, which are assumed to be in UTC.
func parseTimestamp(value string) (time.Time, error) {
	value = truncateFraction(value)

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}

	t, err := time.ParseInLocation(zonelessLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("usermanagement: unsupported timestamp %q, %w",
			value, eventstore.ErrInvalidArgument)
	}

	return t, nil
}

// truncateFraction drops the fractional second digits beyond nanoseconds.
func truncateFraction(value string) string {
	dot := strings.IndexByte(value, '.')
	if dot < 0 {
		return value
	}

	end := dot + 1
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}

	if end-dot-1 <= 9 {
		return value
	}

	return value[:dot+10] + value[end:]
}
