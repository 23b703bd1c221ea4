package peers

import "time"

// Direction tells who initiated a connection.
type Direction uint8

const (
	// Inbound connections were accepted by our listener.
	Inbound Direction = iota
	// Outbound connections were dialled by us.
	Outbound
)

// String ...
func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// PeerInfo describes a peer known to the Registry. It is keyed by the remote
// network address of the connection.
type PeerInfo struct {
	Addr         string    `json:"addr"`
	Direction    Direction `json:"direction"`
	Connected    bool      `json:"connected"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewPeerInfo returns a connected PeerInfo for addr.
func NewPeerInfo(addr string, direction Direction, now time.Time) *PeerInfo {
	return &PeerInfo{
		Addr:         addr,
		Direction:    direction,
		Connected:    true,
		ConnectedAt:  now,
		LastActivity: now,
	}
}
