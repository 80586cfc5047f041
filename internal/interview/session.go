// Package interview implements the question/answer loop of an interview
// session and the transcript export. Every transition takes a
// models.SessionState value and returns the next one; the input is never
// modified, so a rejected transition leaves the caller's state as it was.
package interview

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"interview-rag/internal/models"
)

// Generator produces the text of the next question for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingAnswer
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusAwaitingAnswer:
		return "AWAITING_ANSWER"
	case StatusFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// StatusOf derives the machine state from a session value.
func StatusOf(s models.SessionState) Status {
	switch {
	case s.Finished:
		return StatusFinished
	case s.CurrentQuestion != "":
		return StatusAwaitingAnswer
	default:
		return StatusIdle
	}
}

func invalid(event string, s models.SessionState) error {
	return fmt.Errorf("%w: cannot %s while %s", models.ErrInvalidState, event, StatusOf(s))
}

// GenerateQuestion asks gen for a new question. Allowed only from IDLE.
func GenerateQuestion(ctx context.Context, s models.SessionState, gen Generator) (models.SessionState, error) {
	if StatusOf(s) != StatusIdle {
		return s, invalid("generate a question", s)
	}

	question, err := gen.Generate(ctx, models.InterviewQuestionPrompt)
	if err != nil {
		return s, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return s, fmt.Errorf("%w: generator returned an empty question", models.ErrLLMService)
	}

	s.CurrentQuestion = question
	s.CurrentAnswer = ""
	log.Debug().Int("answered", len(s.QAPairs)).Msg("Question generated")
	return s, nil
}

// EditAnswer replaces the draft answer to the pending question.
func EditAnswer(s models.SessionState, text string) (models.SessionState, error) {
	if StatusOf(s) != StatusAwaitingAnswer {
		return s, invalid("edit an answer", s)
	}
	s.CurrentAnswer = text
	return s, nil
}

// SubmitAnswer records the pending question with the current draft answer
// and returns to IDLE.
func SubmitAnswer(s models.SessionState) (models.SessionState, error) {
	if StatusOf(s) != StatusAwaitingAnswer {
		return s, invalid("submit an answer", s)
	}

	// copy so the caller's slice is never appended to in place
	pairs := make([]models.QAPair, len(s.QAPairs), len(s.QAPairs)+1)
	copy(pairs, s.QAPairs)
	s.QAPairs = append(pairs, models.QAPair{Question: s.CurrentQuestion, Answer: s.CurrentAnswer})
	s.CurrentQuestion = ""
	s.CurrentAnswer = ""
	return s, nil
}

// Finish ends the interview. A pending unanswered question is dropped.
func Finish(s models.SessionState) (models.SessionState, error) {
	if StatusOf(s) == StatusFinished {
		return s, invalid("finish", s)
	}
	if s.CurrentQuestion != "" {
		log.Debug().Msg("Discarding unanswered question")
	}
	s.CurrentQuestion = ""
	s.CurrentAnswer = ""
	s.Finished = true
	return s, nil
}
