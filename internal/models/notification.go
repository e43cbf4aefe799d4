package models

import "time"

// Notification is handed to the notification collaborator on every confirmed recovery
// and on process start.
type Notification struct {
	Message   string    `json:"message"`
	Reason    string    `json:"reason"`
	Minutes   float64   `json:"minutes"`
	Machine   string    `json:"machine,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
