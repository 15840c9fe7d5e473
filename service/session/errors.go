package session

import (
	"errors"

	"CareChat/service/api"
)

// User-facing banner texts. Connectivity failures get their own wording so
// the user knows to check their network; everything else stays generic.
const (
	bannerConnectivity = "Unable to reach the server. Check your connection and try again."
	bannerSendFailed   = "Your message could not be sent."
	bannerReactFailed  = "Your reaction could not be saved."
	bannerLeaveFailed  = "Could not leave the conversation."
)

func bannerFor(err error, generic string) string {
	if api.IsConnectivity(err) {
		return bannerConnectivity
	}
	return generic
}

// Describe renders a fatal view error per the status taxonomy.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, api.ErrNotFound):
		return "This conversation could not be found."
	case errors.Is(err, api.ErrAccessDenied):
		return "You do not have access to this conversation."
	case errors.Is(err, api.ErrAuthRequired):
		return "Please sign in to view this conversation."
	default:
		return "Something went wrong loading this conversation."
	}
}
