package agent

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// fakeLLM is a minimal llms.Model stand-in: Call returns a canned response
// (or error), which is all every agent in this package actually exercises.
type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, f.err
}

var _ llms.Model = (*fakeLLM)(nil)
