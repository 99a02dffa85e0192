// Package usermanagement contains the read models returned by the
// Event Store user management API: user details and their relation links.
package usermanagement
