package relay

import "github.com/postalsys/badnet/internal/metrics"

// Direction is the travel direction of a datagram.
type Direction uint8

const (
	// ClientToServer is traffic from any sender other than the target.
	ClientToServer Direction = iota
	// ServerToClient is traffic from the target.
	ServerToClient
)

// String returns the console form, e.g. "client -> server".
func (d Direction) String() string {
	if d == ServerToClient {
		return "server -> client"
	}
	return "client -> server"
}

// Label returns the metrics label value.
func (d Direction) Label() string {
	if d == ServerToClient {
		return metrics.DirectionServerToClient
	}
	return metrics.DirectionClientToServer
}
