// Package ai talks to the language model that writes discussion prompts and
// grades free-text answers.
package ai

import (
	"context"
	"errors"
)

// ErrUnavailable marks provider failures: transport errors, non-2xx
// responses and unparseable completions.
var ErrUnavailable = errors.New("ai provider unavailable")

// Answer is one student's submitted text.
type Answer struct {
	StudentName string `json:"student_name"`
	Text        string `json:"text"`
}

// PromptRequest asks for Count discussion questions for one group.
type PromptRequest struct {
	GroupName string
	Question  string
	Answers   []Answer
	Count     int
}

// GeneratedPrompt is a single question with its intent tag.
type GeneratedPrompt struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PromptResult is the provider's answer to a PromptRequest.
type PromptResult struct {
	Summary string            `json:"summary"`
	Prompts []GeneratedPrompt `json:"prompts"`
}

// GradeRequest asks for a score of one answer against the question.
type GradeRequest struct {
	Question string
	Answer   string
}

// Grade is a 0..100 score with short feedback.
type Grade struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Provider is the AI completion backend.
type Provider interface {
	GeneratePrompts(ctx context.Context, req PromptRequest) (*PromptResult, error)
	GradeAnswer(ctx context.Context, req GradeRequest) (*Grade, error)
}

// PromptTypes lists the accepted prompt intent tags in rotation order.
var PromptTypes = []string{"follow_up", "reflection", "extension", "check_in"}

func knownType(t string) bool {
	for _, known := range PromptTypes {
		if t == known {
			return true
		}
	}
	return false
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
