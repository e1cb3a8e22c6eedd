// Package dialer defines the seam for originating outbound calls. Dialing
// happens outside this server: a campaign runner or operator tool places the
// call through the telephony provider's REST API with a call-flow URL that
// routes the answered call to the voicebot's handshake endpoint, and the media
// stream then arrives over the WebSocket endpoint. This package only names
// that collaborator so orchestration code can depend on an interface instead
// of a concrete provider client.
package dialer

import "context"

// CallRequest describes one outbound call.
type CallRequest struct {
	// To is the callee's phone number.
	To string

	// From is the caller ID, a number owned by the account.
	From string

	// FlowURL is the call-flow URL that connects the answered call to the
	// voicebot applet.
	FlowURL string
}

// Call holds the provider's record of an originated call.
type Call struct {
	SID    string
	Status string
}

// Originator places outbound calls. The returned call is ringing, not
// answered; implementations live outside this repository.
type Originator interface {
	Originate(ctx context.Context, req CallRequest) (*Call, error)
}
