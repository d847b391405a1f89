package api

import (
	domain "github.com/example/taskflow/domain/user"
)

// Response is the envelope every endpoint renders.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SignupBody is the body of POST /auth/signup.
type SignupBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginBody is the body of POST /auth/login.
type LoginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateTaskBody is the body of POST /tasks.
type CreateTaskBody struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Deadline    string  `json:"deadline"`
	Priority    *string `json:"priority"`
}

// UpdateTaskBody is the body of PUT /tasks/:id. Absent or null fields are
// left untouched; any other key is ignored.
type UpdateTaskBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
}

// SessionPayload is the data of a successful signup or login.
type SessionPayload struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func countOf(n int) *int {
	return &n
}
