package cloudconvert

import (
	"fmt"
	"time"
)

const (
	StatusFinished = "finished"
	StatusError    = "error"

	OperationImportUpload = "import/upload"
	OperationConvert      = "convert"
	OperationExportURL    = "export/url"
)

type JobRequest struct {
	Tasks map[string]TaskRequest `json:"tasks"`
	Tag   string                 `json:"tag,omitempty"`
}

type TaskRequest struct {
	Operation    string `json:"operation"`
	Input        string `json:"input,omitempty"`
	InputFormat  string `json:"input_format,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
}

// Task names used by NewConversionJob.
const (
	TaskImport  = "import-sticker"
	TaskConvert = "convert-sticker"
	TaskExport  = "export-sticker"
)

// NewConversionJob uploads one file, converts it from inputFormat to outputFormat and
// exports the result as a temporary URL.
func NewConversionJob(inputFormat, outputFormat string) JobRequest {
	return JobRequest{
		Tag: "sticker-pack-bot",
		Tasks: map[string]TaskRequest{
			TaskImport: {Operation: OperationImportUpload},
			TaskConvert: {
				Operation:    OperationConvert,
				Input:        TaskImport,
				InputFormat:  inputFormat,
				OutputFormat: outputFormat,
			},
			TaskExport: {Operation: OperationExportURL, Input: TaskConvert},
		},
	}
}

type jobResponse struct {
	Data Job `json:"data"`
}

type Job struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Tasks  []Task `json:"tasks"`
}

type Task struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Operation string      `json:"operation"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Code      string      `json:"code"`
	Result    *TaskResult `json:"result"`
}

type TaskResult struct {
	Form  *UploadForm `json:"form"`
	Files []File      `json:"files"`
}

type UploadForm struct {
	URL        string         `json:"url"`
	Parameters map[string]any `json:"parameters"`
}

type File struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func (j *Job) Task(name string) (*Task, bool) {
	for i := range j.Tasks {
		if j.Tasks[i].Name == name {
			return &j.Tasks[i], true
		}
	}
	return nil, false
}

// FailedTask returns the first task with status error.
func (j *Job) FailedTask() (*Task, bool) {
	for i := range j.Tasks {
		if j.Tasks[i].Status == StatusError {
			return &j.Tasks[i], true
		}
	}
	return nil, false
}

// APIError is a non-2xx answer of the API or of the storage endpoints.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("cloudconvert: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("cloudconvert: %d: %s", e.StatusCode, e.Message)
}

// TaskError is a job that ran but whose task failed, usually on a broken input file.
type TaskError struct {
	Task    string
	Code    string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("cloudconvert task %s failed: %s (%s)", e.Task, e.Message, e.Code)
}
