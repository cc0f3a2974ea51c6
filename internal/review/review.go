// Package review tracks the manual question workflow for sessions whose
// classification produced uncertain matches. Questions are held in memory
// between the classify and results phases and answered one at a time.
package review

import (
	"errors"
	"fmt"
	"sync"

	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
)

// Answer codes accepted by the workflow.
const (
	AnswerYes      = "y"
	AnswerNo       = "n"
	AnswerSkip     = "s"
	AnswerPrevious = "p"
)

// ErrUnknownSession is returned when no question set exists for a session.
var ErrUnknownSession = errors.New("unknown review session")

// ErrCompleted is returned when answering a session whose questions are done.
var ErrCompleted = errors.New("review already completed")

// Registry holds pending question sets keyed by session ID. All methods are
// safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	all       []statements.ClassifiedStatement
	questions []int // indexes into all, in classification order
	current   int
	completed bool
	answered  []string // answer history parallel to questions, up to current
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*sessionState)}
}

// Register stores the classified statements for a session and derives its
// question list. It returns the number of questions. Registering again for
// the same session replaces any previous state.
func (r *Registry) Register(sessionID string, all []statements.ClassifiedStatement) int {
	st := &sessionState{all: append([]statements.ClassifiedStatement(nil), all...)}
	for i, item := range st.all {
		if item.Classification.AskQuestion {
			st.questions = append(st.questions, i)
		}
	}
	st.completed = len(st.questions) == 0

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = st
	return len(st.questions)
}

// State reports the current question for a session.
func (r *Registry) State(sessionID string) (statements.QuestionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionID]
	if !ok {
		return statements.QuestionState{}, ErrUnknownSession
	}
	qs := statements.QuestionState{
		Completed: st.completed,
		Current:   st.current,
		Total:     len(st.questions),
		CanGoBack: st.current > 0 && !st.completed,
	}
	if !st.completed && st.current < len(st.questions) {
		item := st.all[st.questions[st.current]]
		qs.CompanyName = item.Record.CompanyName
		qs.SimilarTo = item.Classification.SimilarTo
	}
	return qs, nil
}

// Answer applies one answer to the current question:
//   - "y" confirms the fuzzy match and routes the statement to DNM
//   - "n" rejects the match and keeps the location-based destination
//   - "s" skips every remaining question, keeping computed destinations
//   - "p" steps back to the previous question and undoes its answer
//
// The returned state describes the next question (or completion).
func (r *Registry) Answer(sessionID string, answer string) (statements.QuestionState, error) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return statements.QuestionState{}, ErrUnknownSession
	}
	if st.completed {
		r.mu.Unlock()
		return statements.QuestionState{}, ErrCompleted
	}

	var err error
	switch answer {
	case AnswerYes:
		idx := st.questions[st.current]
		st.all[idx].Classification.Destination = statements.DestinationDNM
		st.all[idx].UserAnswered = AnswerYes
		st.answered = append(st.answered, AnswerYes)
		st.advance()
	case AnswerNo:
		idx := st.questions[st.current]
		st.all[idx].UserAnswered = AnswerNo
		st.answered = append(st.answered, AnswerNo)
		st.advance()
	case AnswerSkip:
		st.completed = true
	case AnswerPrevious:
		err = st.stepBack()
	default:
		err = fmt.Errorf("invalid answer %q", answer)
	}
	r.mu.Unlock()
	if err != nil {
		return statements.QuestionState{}, err
	}
	return r.State(sessionID)
}

func (st *sessionState) advance() {
	st.current++
	if st.current >= len(st.questions) {
		st.completed = true
	}
}

func (st *sessionState) stepBack() error {
	if st.current == 0 {
		return errors.New("no previous question")
	}
	st.current--
	prev := st.answered[len(st.answered)-1]
	st.answered = st.answered[:len(st.answered)-1]
	idx := st.questions[st.current]
	if prev == AnswerYes {
		// Undo the DNM override; recompute from the recorded location.
		st.all[idx].Classification.Destination = statements.DestinationFor(
			st.all[idx].Classification.Location,
			st.all[idx].Record.Pages,
		)
	}
	st.all[idx].UserAnswered = ""
	return nil
}

// Completed reports whether all questions for the session are resolved.
func (r *Registry) Completed(sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionID]
	if !ok {
		return false, ErrUnknownSession
	}
	return st.completed, nil
}

// Take removes the session from the registry and returns its resolved
// statements. It fails if the questions are not yet complete.
func (r *Registry) Take(sessionID string) ([]statements.ClassifiedStatement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrUnknownSession
	}
	if !st.completed {
		return nil, errors.New("review not completed")
	}
	delete(r.sessions, sessionID)
	return st.all, nil
}

// Drop discards any pending state for the session.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}
