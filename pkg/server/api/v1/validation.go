package v1

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vulntor/volworker/pkg/outputfile"
	"github.com/vulntor/volworker/pkg/task"
)

var validate = validator.New()

// SubmitJobRequest is the body of POST /api/v1/jobs.
type SubmitJobRequest struct {
	// Images are paths of memory images readable by the worker.
	Images []string `json:"images" validate:"required_without=PipeResult,dive,required"`

	// PipeResult is an encoded result of a previous task; its output files
	// replace Images.
	PipeResult string `json:"pipe_result,omitempty"`

	// OutputPath is an existing directory the worker writes into.
	OutputPath string `json:"output_path" validate:"required"`

	WorkflowID string         `json:"workflow_id,omitempty"`
	TaskConfig map[string]any `json:"task_config,omitempty"`
}

// ValidationError is a lightweight error used for 400 responses.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return "validation failed"
	}
	if e.Reason == "" {
		return e.Field + ": invalid"
	}
	return e.Field + ": " + e.Reason
}

// ToRequest validates the body and converts it into a task request.
func (s SubmitJobRequest) ToRequest() (task.Request, error) {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return task.Request{}, &ValidationError{
				Field:  jsonField(fe.Field()),
				Reason: fmt.Sprintf("failed %q validation", fe.Tag()),
			}
		}
		return task.Request{}, &ValidationError{Reason: err.Error()}
	}

	if len(s.Images) == 0 && s.PipeResult == "" {
		return task.Request{}, &ValidationError{Field: "images", Reason: "at least one image is required"}
	}

	info, err := os.Stat(s.OutputPath)
	if err != nil || !info.IsDir() {
		return task.Request{}, &ValidationError{Field: "output_path", Reason: "must be an existing directory"}
	}

	files := make([]outputfile.File, 0, len(s.Images))
	for _, img := range s.Images {
		f, err := outputfile.FromPath(img)
		if err != nil {
			return task.Request{}, &ValidationError{Field: "images", Reason: fmt.Sprintf("%s: %v", img, err)}
		}
		files = append(files, f)
	}

	return task.Request{
		InputFiles: files,
		PipeResult: s.PipeResult,
		OutputPath: s.OutputPath,
		WorkflowID: s.WorkflowID,
		TaskConfig: s.TaskConfig,
	}, nil
}

func jsonField(name string) string {
	switch name {
	case "Images":
		return "images"
	case "OutputPath":
		return "output_path"
	default:
		return strings.ToLower(name)
	}
}
