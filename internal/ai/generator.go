package ai

import "context"

// DocumentType identifies the kind of career document being generated.
type DocumentType string

const (
	DocumentCoverLetter   DocumentType = "cover_letter"
	DocumentInterviewPrep DocumentType = "interview_prep"
	DocumentResumeSummary DocumentType = "resume_summary"
)

// Request carries the prompts for a single generation call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Type         DocumentType
}

// Generator produces a career document from the given prompts. Calls are
// long-running network operations; implementations must honor context
// cancellation and return errors classified with kinds from this package.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}
