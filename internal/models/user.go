// internal/models/user.go
package models

// User is a chat-platform participant. IDs are assigned by the platform; the
// engine never mints them.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
