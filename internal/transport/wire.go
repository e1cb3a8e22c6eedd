package transport

// Inbound and outbound control frames on the telephony media stream. The
// wire protocol is JSON text frames in both directions; audio rides inside
// media frames as base64.

// eventStart, eventMedia, eventStop are the inbound event names; outbound
// frames reuse eventMedia and add eventClear and eventMark.
const (
	eventStart = "start"
	eventMedia = "media"
	eventStop  = "stop"
	eventClear = "clear"
	eventMark  = "mark"
)

// mediaPayload is the audio envelope inside a media frame.
type mediaPayload struct {
	Payload string `json:"payload"`
}

// markPayload names a playback marker. The transport echoes it back once the
// audio queued before it has played out.
type markPayload struct {
	Name string `json:"name"`
}

// startPayload carries call metadata on the start frame. Fields are
// provider-dependent; only the ones we read are declared.
type startPayload struct {
	CallSID string `json:"call_sid"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// wireFrame is the envelope for every frame in either direction.
type wireFrame struct {
	Event string        `json:"event"`
	Start *startPayload `json:"start,omitempty"`
	Media *mediaPayload `json:"media,omitempty"`
	Mark  *markPayload  `json:"mark,omitempty"`
}
