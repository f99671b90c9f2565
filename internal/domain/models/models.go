package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID        string    `json:"id" validate:"omitempty,uuid"`
	Username  string    `json:"username" validate:"required,min=3,max=50"`
	Password  string    `json:"-"`
	Name      string    `json:"name" validate:"required,max=100"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicUser is the client-facing projection of a user. It never carries the password.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=100"`
	Name     string `json:"name" validate:"required,max=100"`
}

type Task struct {
	ID          string    `json:"id" validate:"omitempty,uuid"`
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"omitempty,max=2000"`
	DueDate     time.Time `json:"dueDate" validate:"required"`
	Status      string    `json:"status" validate:"required,oneof=pending completed"`
	Priority    string    `json:"priority" validate:"required,oneof=low medium high"`
	AssignedTo  []string  `json:"assignedTo"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateTaskRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"omitempty,max=2000"`
	DueDate     time.Time `json:"dueDate" validate:"required"`
	Priority    string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssignedTo  []string  `json:"assignedTo"`
}

// OptionalTime is a timestamp that may be absent from a request body.
// An empty string and null decode as "not set" rather than as an error.
type OptionalTime struct {
	Time time.Time
	Set  bool
}

func (t *OptionalTime) UnmarshalJSON(data []byte) error {
	if s := string(data); s == "null" || s == `""` {
		t.Set = false
		return nil
	}
	if err := json.Unmarshal(data, &t.Time); err != nil {
		return err
	}
	t.Set = true
	return nil
}

// UpdateTaskRequest uses pointer fields so that an absent key and an
// explicitly empty value can be told apart. Title, DueDate, Status and
// Priority are applied only when present and non-empty (an empty-string
// dueDate counts as absent); Description is applied whenever the key is
// present, including an explicit empty string; AssignedTo replaces the set
// only when a non-empty array arrives.
type UpdateTaskRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	DueDate     OptionalTime `json:"dueDate"`
	Status      *string      `json:"status"`
	Priority    *string      `json:"priority"`
	AssignedTo  []string     `json:"assignedTo"`
}

// TaskView is a task with its user references resolved into public profiles.
type TaskView struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DueDate     time.Time    `json:"dueDate"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	AssignedTo  []PublicUser `json:"assignedTo"`
	CreatedBy   PublicUser   `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type TaskPage struct {
	Tasks      []TaskView `json:"tasks"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
}

// TaskFilter describes the listing query: the mandatory assignee predicate
// plus optional status/priority equality predicates and the page window.
type TaskFilter struct {
	AssigneeID string
	Status     string
	Priority   string
	Page       int
	Limit      int
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Name: u.Name}
}
