package remote

import "github.com/minewebstore/mwsync/internal/model"

// Request and response bodies of the mcapi/v1 REST API.

type envelope interface {
	result() (ok bool, message string)
}

type baseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (r baseResponse) result() (bool, string) { return r.Success, r.Message }

type registerRequest struct {
	SecretKey  string `json:"secret_key"`
	ServerName string `json:"server_name"`
}

type registerResponse struct {
	baseResponse
	ServerKey string `json:"server_key"`
}

type commandsResponse struct {
	baseResponse
	Commands []model.Command `json:"commands"`
	Count    int             `json:"count"`
}

type readRequest struct {
	ServerName string `json:"server_name"`
	CommandIDs []int  `json:"command_ids"`
}

type readResponse struct {
	baseResponse
	UpdatedCount int `json:"updated_count"`
}

type statusRequest struct {
	ServerName string       `json:"server_name"`
	Status     model.Status `json:"status"`
	Message    string       `json:"message,omitempty"`
}

type playersRequest struct {
	ServerName string   `json:"server_name"`
	Players    []string `json:"players"`
	PlayerHash string   `json:"player_hash,omitempty"`
}

type playersResponse struct {
	baseResponse
	Hash    string `json:"hash"`
	Updated bool   `json:"updated"`
}

// ServerStatus is the storefront plugin's self-description, returned by
// the unauthenticated status endpoint.
type ServerStatus struct {
	Success          bool   `json:"success"`
	Plugin           string `json:"plugin"`
	Version          string `json:"version"`
	Status           string `json:"status"`
	DatabaseReady    bool   `json:"database_ready"`
	SecretConfigured bool   `json:"secret_configured"`
	Timestamp        string `json:"timestamp,omitempty"`
}

func (s ServerStatus) result() (bool, string) { return s.Success, s.Status }
