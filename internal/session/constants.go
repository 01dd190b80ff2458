// Package session keeps the short-lived server state that carries a
// signup result from POST /signup to the confirmation page.
package session

import "time"

const (
	// CookieName holds the confirmation token.
	CookieName = "cf_confirmation"

	// CookiePath limits the cookie to the confirmation page.
	CookiePath = "/obrigado"

	// DefaultTTL is how long a confirmation can be claimed.
	DefaultTTL = 10 * time.Minute
)
