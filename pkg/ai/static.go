package ai

import (
	"context"
	"fmt"
	"strings"
)

// Static is a deterministic Provider used when no API key is configured.
type Static struct{}

// NewStatic constructs the provider.
func NewStatic() *Static {
	return &Static{}
}

var staticTemplates = map[string]string{
	"follow_up":  "%s, can you explain the evidence behind your answer to \"%s\"?",
	"reflection": "What would change your group's answer to \"%s\"? (%s)",
	"extension":  "How would you test your group's idea about \"%s\" in a new setting? (%s)",
	"check_in":   "Does everyone agree with %s's reasoning? Why or why not?",
}

// GeneratePrompts rotates through the prompt types, naming students in
// submission order.
func (s *Static) GeneratePrompts(_ context.Context, req PromptRequest) (*PromptResult, error) {
	count := req.Count
	if count <= 0 {
		count = 3
	}
	names := make([]string, 0, len(req.Answers))
	for _, a := range req.Answers {
		names = append(names, a.StudentName)
	}
	if len(names) == 0 {
		names = append(names, "the group")
	}
	question := strings.TrimSpace(req.Question)

	prompts := make([]GeneratedPrompt, count)
	for i := range prompts {
		kind := PromptTypes[i%len(PromptTypes)]
		name := names[i%len(names)]
		var text string
		switch kind {
		case "follow_up":
			text = fmt.Sprintf(staticTemplates[kind], name, question)
		case "check_in":
			text = fmt.Sprintf(staticTemplates[kind], name)
		default:
			text = fmt.Sprintf(staticTemplates[kind], question, req.GroupName)
		}
		prompts[i] = GeneratedPrompt{Type: kind, Text: text}
	}

	return &PromptResult{
		Summary: fmt.Sprintf("%d answers from %s", len(req.Answers), req.GroupName),
		Prompts: prompts,
	}, nil
}

// GradeAnswer scores by answer length, 10 points per word up to 100.
func (s *Static) GradeAnswer(_ context.Context, req GradeRequest) (*Grade, error) {
	words := len(strings.Fields(req.Answer))
	score := clampScore(words * 10)
	feedback := "Add more detail and evidence to support your answer."
	if score >= 70 {
		feedback = "Clear answer with supporting detail."
	}
	return &Grade{Score: score, Feedback: feedback}, nil
}
