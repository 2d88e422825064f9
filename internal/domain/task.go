package domain

import "time"

type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "QUEUED"
	TaskStatusParsing   TaskStatus = "PARSING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ResumeFields is the structured output of a successful resume extraction.
type ResumeFields struct {
	Name            string   `json:"name"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	YearsExperience int      `json:"years_experience,omitempty"`
}

// ParseTask tracks one resume-parsing unit of work. The worker owning the
// task is the only writer; status-polling clients only read.
type ParseTask struct {
	TaskID    string        `json:"task_id"`
	ResumeID  string        `json:"resume_id"`
	Status    TaskStatus    `json:"status"`
	Progress  int           `json:"progress"`
	Message   string        `json:"message,omitempty"`
	Result    *ResumeFields `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ParseMessage is the transport format sent to queue backends.
type ParseMessage struct {
	TaskID      string    `json:"task_id"`
	ResumeID    string    `json:"resume_id"`
	Reference   string    `json:"reference"`
	FileName    string    `json:"file_name"`
	OwnerID     string    `json:"owner_id"`
	Attempt     int       `json:"attempt"`
	RequestedAt time.Time `json:"requested_at"`
}
