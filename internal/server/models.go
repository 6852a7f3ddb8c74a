package server

import (
	"tasknode/internal/domain"
	"tasknode/internal/lifecycle"
)

type IngestResponse struct {
	Hash     string `json:"hash"`
	Inserted bool   `json:"inserted"`
}

type ContextResponse struct {
	Account string `json:"account"`
	Context string `json:"context"`
}

type AuthorizationRequest struct {
	Authorized bool `json:"authorized"`
}

type FlagRequest struct {
	Flag string `json:"flag" enum:"RED,YELLOW"`
}

// TaskResponse is a task aggregate plus its derived lifecycle state.
type TaskResponse struct {
	domain.Task
	State domain.TaskState `json:"state"`
}

func taskResponse(t *domain.Task, state domain.TaskState) TaskResponse {
	return TaskResponse{Task: *t, State: state}
}

func mapTasks(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskResponse{Task: *t, State: lifecycle.State(t)})
	}
	return out
}
