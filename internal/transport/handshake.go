package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HandshakeHandler answers the telephony provider's pre-call handshake: it
// returns the WebSocket URL the provider should open for the media stream.
// publicHost must be the TLS hostname reachable from the provider, not the
// instance's internal address.
func HandshakeHandler(publicHost, wsPath string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			URL string `json:"url"`
		}{
			URL: "wss://" + publicHost + wsPath,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Debug("handshake write failed", slog.String("error", err.Error()))
		}
	})
}
