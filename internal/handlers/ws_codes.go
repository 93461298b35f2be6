// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby event stream.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidLobbyIDError = 3003 // Target lobby in the WS URL does not exist.
	NotParticipantError = 3004 // Caller is not a participant of the target lobby.
)
