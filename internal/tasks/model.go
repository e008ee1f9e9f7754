// Package tasks implements per-user task tracking. Every operation is scoped
// to the owning user's id, which handlers obtain exclusively from the auth
// gate.
package tasks

import "time"

// Task is a single tracked item. UserID and CreatedAt are immutable after
// creation; UpdatedAt is refreshed on every mutation.
type Task struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
