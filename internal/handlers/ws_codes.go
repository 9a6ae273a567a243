// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes sent by the /ws handler when a connection is
// refused after the upgrade.
const (
	InvalidAuthTokenError = 3001 // Bearer token failed verification.
	ServerDrainingError   = 3004 // Server is shutting down and takes no new sessions.
)
