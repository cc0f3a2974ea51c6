package statements

import (
	"time"
)

// SessionStatus represents the lifecycle state of a processing session.
type SessionStatus string

// Session status values persisted in the session store.
const (
	StatusPending         SessionStatus = "pending"
	StatusProcessing      SessionStatus = "processing"
	StatusCompleted       SessionStatus = "completed"
	StatusCreatingResults SessionStatus = "creating_results"
	StatusError           SessionStatus = "error"
)

// Destination identifies the output bucket a statement is routed to.
type Destination string

// Destinations recognized by the results builder.
const (
	DestinationDNM         Destination = "DNM"
	DestinationForeign     Destination = "Foreign"
	DestinationNatioSingle Destination = "Natio Single"
	DestinationNatioMulti  Destination = "Natio Multi"
)

// StatementRecord is the pre-extracted text unit submitted by clients.
type StatementRecord struct {
	CompanyName string `json:"company_name"`
	Body        string `json:"body"`
	Pages       int    `json:"pages"`
}

// Classification captures the routing decision for one statement.
type Classification struct {
	ExactMatch     string      `json:"exact_match,omitempty"`
	SimilarTo      string      `json:"similar_to,omitempty"`
	Percentage     float64     `json:"percentage,omitempty"`
	Location       string      `json:"location"`
	Destination    Destination `json:"destination"`
	ManualRequired bool        `json:"manual_required"`
	AskQuestion    bool        `json:"ask_question"`
}

// ClassifiedStatement pairs a submitted record with its classification and,
// once the review workflow has run, the operator's answer.
type ClassifiedStatement struct {
	Record         StatementRecord `json:"record"`
	Classification Classification  `json:"classification"`
	UserAnswered   string          `json:"user_answered,omitempty"`
}

// Progress tracks how far classification has advanced within a session.
type Progress struct {
	Processed int `json:"processed_statements"`
	Total     int `json:"total_statements"`
}

// SubmissionParameters is the payload accepted by the process endpoint.
type SubmissionParameters struct {
	DNMCompanies []string          `json:"dnm_companies"`
	Records      []StatementRecord `json:"statements"`
}

// Session is the metadata persisted for each submitted processing request.
type Session struct {
	ID                string        `json:"session_id"`
	Status            SessionStatus `json:"status"`
	Submitted         time.Time     `json:"submitted_at"`
	Started           *time.Time    `json:"started_at,omitempty"`
	Finished          *time.Time    `json:"finished_at,omitempty"`
	ErrorText         string        `json:"error_text,omitempty"`
	PayloadHash       string        `json:"payload_hash,omitempty"`
	Progress          Progress      `json:"progress"`
	RequiresQuestions bool          `json:"requires_questions"`
	QuestionsCount    int           `json:"questions_count"`
	ArchiveURI        string        `json:"archive_uri,omitempty"`
}

// QuestionState describes the current position in the review workflow.
type QuestionState struct {
	Completed   bool   `json:"completed"`
	Current     int    `json:"current,omitempty"`
	Total       int    `json:"total"`
	CompanyName string `json:"company_name,omitempty"`
	SimilarTo   string `json:"similar_to,omitempty"`
	CanGoBack   bool   `json:"can_go_back"`
}

// Statistics summarizes a completed session for the results payload.
type Statistics struct {
	TotalStatements      int            `json:"total_statements"`
	Destinations         map[string]int `json:"destinations"`
	ManualReviewRequired int            `json:"manual_review_required"`
	InteractiveQuestions int            `json:"interactive_questions"`
}

// Results is returned by the results endpoint once the archive exists.
type Results struct {
	SessionID  string     `json:"session_id"`
	Statistics Statistics `json:"statistics"`
	ArchiveURI string     `json:"archive_uri"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Phase selects which half of the pipeline a queue item drives.
type Phase string

// Pipeline phases handled by the processor.
const (
	PhaseClassify Phase = "classify"
	PhaseResults  Phase = "results"
)

// QueueItem wraps a session ready for background work.
type QueueItem struct {
	SessionID string
	Phase     Phase
	Params    SubmissionParameters
	Submitted int64
}

// TerminalStatus reports whether a status ends the session lifecycle. The
// completed status is terminal only once questions have been resolved, so
// callers deciding on cleanup should also consult RequiresQuestions.
func TerminalStatus(status SessionStatus) bool {
	return status == StatusCompleted || status == StatusError
}
