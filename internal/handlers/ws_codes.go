// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes, beyond the standard range.
const (
	BadSubprotocolError   = 3000 // client connected with an unsupported subprotocol
	InvalidAuthTokenError = 3001 // auth token invalid or expired
)
