package httpserver

import (
	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/config"
)

// withTURNRESTCredentials returns a copy of servers with freshly minted TURN
// REST credentials on every TURN entry. STUN entries are left untouched.
func withTURNRESTCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	if len(servers) == 0 {
		// Keep empty slices non-nil so the response encodes `[]`, not `null`.
		return servers
	}
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		if config.IsTURNServer(server) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}
