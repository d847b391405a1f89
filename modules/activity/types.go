package activity

import "github.com/example/taskflow/domain/apperr"

// ServiceListActivity is the request-reply service exposed by this module.
const ServiceListActivity = "list-activity"

// ListActivityRequest represents a list activity request.
type ListActivityRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// ListActivityResponse carries the user's feed, newest first.
type ListActivityResponse struct {
	Items []Entry       `json:"items"`
	Count int           `json:"count"`
	Error *apperr.Error `json:"error,omitempty"`
}
