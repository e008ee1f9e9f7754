package tasks

// CreateTaskRequest is the payload for creating a task.
type CreateTaskRequest struct {
	Title string `json:"title"`
}

// UpdateTaskRequest is a partial patch: omitted fields keep their prior
// value.
type UpdateTaskRequest struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// ToggleAllRequest sets the completion flag on every task of the user.
type ToggleAllRequest struct {
	Completed bool `json:"completed"`
}
