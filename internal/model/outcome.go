package model

// Status is the terminal state reported back to the storefront.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// Outcome is the terminal result of executing one command.
type Outcome struct {
	CommandID int    `json:"command_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// Status maps the outcome onto the storefront's status vocabulary.
func (o Outcome) Status() Status {
	if o.Success {
		return StatusExecuted
	}
	return StatusFailed
}

// Actor is a player identity as seen by the game server: a stable
// identifier (a UUID) and the current display name.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
