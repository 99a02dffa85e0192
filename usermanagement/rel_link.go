package usermanagement

import (
	"fmt"
	"strings"

	"github.com/get-eventually/go-eventstore"
)

// ErrRelNotFound is returned when looking up a relation that is not
// present in a set of Links.
var ErrRelNotFound = fmt.Errorf("usermanagement: rel not found, %w", eventstore.ErrNotFound)

// RelLink is a hypermedia link, identified by its relation name.
type RelLink struct {
	rel  string
	href string
}

// NewRelLink returns a new RelLink, failing if either the relation
// or the target are empty.
func NewRelLink(rel, href string) (RelLink, error) {
	if rel == "" {
		return RelLink{}, fmt.Errorf("usermanagement.NewRelLink: empty rel, %w", eventstore.ErrInvalidArgument)
	}

	if href == "" {
		return RelLink{}, fmt.Errorf("usermanagement.NewRelLink: empty href for rel %q, %w",
			rel, eventstore.ErrInvalidArgument)
	}

	return RelLink{rel: rel, href: href}, nil
}

// Rel returns the relation name.
func (l RelLink) Rel() string { return l.rel }

// Href returns the link target.
func (l RelLink) Href() string { return l.href }

// RawRelLink is the wire representation of a RelLink.
type RawRelLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// Links is a read-only, ordered sequence of RelLinks.
//
// Duplicated relations are kept as they are.
type Links struct {
	links []RelLink
}

// NewLinks returns a new Links sequence, in the provided order.
func NewLinks(links ...RelLink) Links {
	copied := make([]RelLink, len(links))
	copy(copied, links)

	return Links{links: copied}
}

// LinksFrom validates the raw links and returns them as Links,
// preserving their order.
func LinksFrom(raw []RawRelLink) (Links, error) {
	links := make([]RelLink, 0, len(raw))

	for i, r := range raw {
		link, err := NewRelLink(r.Rel, r.Href)
		if err != nil {
			return Links{}, fmt.Errorf("usermanagement.LinksFrom: invalid link #%d, %w", i, err)
		}

		links = append(links, link)
	}

	return Links{links: links}, nil
}

// Get returns the target of the first link, in order, whose relation
// matches the specified one, ignoring case.
//
// ErrRelNotFound is returned if no link matches.
func (l Links) Get(rel string) (string, error) {
	for _, link := range l.links {
		if strings.EqualFold(link.rel, rel) {
			return link.href, nil
		}
	}

	return "", fmt.Errorf("usermanagement.Links: %q, %w", rel, ErrRelNotFound)
}

// All returns a copy of the links, in order.
func (l Links) All() []RelLink {
	links := make([]RelLink, len(l.links))
	copy(links, l.links)

	return links
}

// Raw returns the wire representation of the links, in order.
func (l Links) Raw() []RawRelLink {
	raw := make([]RawRelLink, 0, len(l.links))
	for _, link := range l.links {
		raw = append(raw, RawRelLink{Rel: link.rel, Href: link.href})
	}

	return raw
}

// Len returns the number of links.
func (l Links) Len() int { return len(l.links) }
