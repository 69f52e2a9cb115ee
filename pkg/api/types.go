// Package api defines the wire types exchanged with the opsdeck server.
// These mirror the server's JSON contracts; the client core passes them
// through without validating their shape.
package api

import "time"

// User describes the authenticated console user as returned by the server.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	DirectoryName string `json:"directoryName,omitempty"`
}

// LoginRequest is the credential-exchange payload.
type LoginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

// LoginResponse is returned by a successful credential exchange.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Topic describes a managed topic on the server.
type Topic struct {
	Name       string    `json:"name"`
	Partitions int       `json:"partitions,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// StatusResponse is returned by the server status endpoint.
type StatusResponse struct {
	ServerVersion string `json:"serverVersion"`
	APIVersion    string `json:"apiVersion"`
	ServerTime    string `json:"serverTime,omitempty"`
	UserID        string `json:"userID,omitempty"`
}
