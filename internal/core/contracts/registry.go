package contracts

import "context"

// Registry is the local hub that owns room membership for the websocket
// connections on this node and fans frames out to them.
type Registry interface {
	// Register adds a freshly upgraded connection.
	Register(c Client)
	// Unregister removes the connection and returns the rooms it was in,
	// so presence cleanup can run per room.
	Unregister(c Client) []string
	// Join adds the connection to a room; Leave removes it.
	Join(roomID string, c Client)
	Leave(roomID string, c Client)
	// Rooms lists the rooms a connection is currently joined to.
	Rooms(connID string) []string
	// Members lists the clients currently in a room.
	Members(roomID string) []Client
	// BroadcastRoom sends a frame to every room member, optionally
	// skipping one connection (usually the sender).
	BroadcastRoom(ctx context.Context, roomID string, exceptConnID string, data []byte)
	// BroadcastAll sends a frame to every connected client.
	BroadcastAll(ctx context.Context, data []byte)
}

// Client is the minimal surface the Registry needs to talk to one websocket
// connection.
type Client interface {
	ConnID() string
	UserID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
