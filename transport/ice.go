// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"
)

// ICEConfig holds ICE server configuration for WebRTC PeerConnections.
type ICEConfig struct {
	// Servers is the list of ICE servers (STUN + TURN) to use during
	// candidate gathering. Order matters: pion tries them in sequence.
	Servers []webrtc.ICEServer
}

// TURNServer is one TURN relay with static credentials.
type TURNServer struct {
	URLs       []string
	Username   string
	Credential string
}

// NewICEConfig builds an ICEConfig from STUN URLs and TURN servers.
// With neither, the config gathers only host candidates, which is
// sufficient on a LAN.
func NewICEConfig(stunURLs []string, turnServers []TURNServer) ICEConfig {
	var config ICEConfig
	if len(stunURLs) > 0 {
		config.Servers = append(config.Servers, webrtc.ICEServer{URLs: stunURLs})
	}
	for _, turn := range turnServers {
		if len(turn.URLs) == 0 {
			continue
		}
		config.Servers = append(config.Servers, webrtc.ICEServer{
			URLs:       turn.URLs,
			Username:   turn.Username,
			Credential: turn.Credential,
		})
	}
	return config
}
