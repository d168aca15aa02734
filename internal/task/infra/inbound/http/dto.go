package http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

// taskResponse es la representación pública de una tarea. El propietario no se expone.
type taskResponse struct {
	ID                   uuid.UUID             `json:"id"`
	Title                string                `json:"title"`
	Status               taskDomain.TaskStatus `json:"status"`
	AllocatedHours       float64               `json:"allocated_hours"`
	TimeSpent            float64               `json:"time_spent"`
	HoursRemaining       float64               `json:"hours_remaining"`
	CompletionPercentage float64               `json:"completion_percentage"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

func toTaskResponse(t *taskDomain.Task) taskResponse {
	return taskResponse{
		ID:                   t.ID,
		Title:                t.Title,
		Status:               t.Status,
		AllocatedHours:       t.AllocatedHours,
		TimeSpent:            t.TimeSpent,
		HoursRemaining:       taskDomain.RoundTo(t.HoursRemaining(), 4),
		CompletionPercentage: taskDomain.RoundTo(t.CompletionPercentage(), 2),
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func toTaskResponses(tasks []*taskDomain.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}

// taskRequest acepta JSON o formulario. id, created_at y updated_at se ignoran.
type taskRequest struct {
	Title          *string  `json:"title" form:"title"`
	Status         *string  `json:"status" form:"status"`
	AllocatedHours *float64 `json:"allocated_hours" form:"allocated_hours"`
	TimeSpent      *float64 `json:"time_spent" form:"time_spent"`
}

func (r taskRequest) toPatch() taskDomain.TaskPatch {
	p := taskDomain.TaskPatch{
		Title:          r.Title,
		AllocatedHours: r.AllocatedHours,
		TimeSpent:      r.TimeSpent,
	}
	if r.Status != nil {
		st := taskDomain.TaskStatus(*r.Status)
		p.Status = &st
	}
	return p
}

// writableFields son los campos que acepta taskRequest.
var writableFields = []string{"title", "status", "allocated_hours", "time_spent"}

// nullFields detecta un null JSON explícito en un campo escribible: null no equivale a "ausente".
func nullFields(raw map[string]json.RawMessage) map[string]string {
	errs := map[string]string{}
	for _, field := range writableFields {
		if v, ok := raw[field]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			errs[field] = "this field may not be null"
		}
	}
	return errs
}
