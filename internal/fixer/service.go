// Package fixer asks a language model for a corrected version of a file
package fixer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tildaslashalef/sonarfix/internal/extractor"
	"github.com/tildaslashalef/sonarfix/internal/llm"
	"github.com/tildaslashalef/sonarfix/internal/loggy"
	"github.com/tildaslashalef/sonarfix/internal/sonar"
)

// ErrNoPatch is returned when the model yields no usable completion
var ErrNoPatch = errors.New("no patch received")

// Options configure the completion request
type Options struct {
	Model       string  // empty defers to the client's configured model
	Temperature float64
	// StripCodeFence unwraps a response that is one fenced code block
	StripCodeFence bool
}

// Service generates fixed file contents for buckets of same-rule issues
type Service struct {
	llmClient llm.Client
	extractor *extractor.CodeExtractor
	opts      Options
	logger    *loggy.Logger
}

// NewService creates a new fix generator
func NewService(llmClient llm.Client, opts Options, logger *loggy.Logger) *Service {
	s := &Service{
		llmClient: llmClient,
		opts:      opts,
		logger:    logger,
	}
	if opts.StripCodeFence {
		s.extractor = extractor.NewCodeExtractor(logger)
	}
	return s
}

// RequestFix sends one completion request for the issues of a single rule in
// a single file and returns the complete replacement file contents, ending
// with exactly one newline.
func (s *Service) RequestFix(ctx context.Context, issues []sonar.Issue, fileContents string, rule *sonar.Rule) (string, error) {
	prompt, err := BuildPrompt(issues, fileContents, rule)
	if err != nil {
		return "", fmt.Errorf("requesting fix: %w", err)
	}

	chatReq := llm.ChatRequest{
		Model:       s.opts.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: s.opts.Temperature,
	}

	s.logger.Debug("Requesting fix",
		"rule", issues[0].Rule,
		"issues", len(issues),
		"prompt_length", len(prompt))

	resp, err := s.llmClient.GenerateChat(ctx, chatReq)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return "", fmt.Errorf("requesting fix: %w: %w", ErrNoPatch, err)
		}
		return "", fmt.Errorf("requesting fix: %w", err)
	}

	if resp == nil {
		return "", fmt.Errorf("requesting fix: %w", ErrNoPatch)
	}

	content := resp.Content
	if s.extractor != nil {
		if body, ok := s.extractor.ExtractFile(content); ok {
			content = body
		}
	}

	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("requesting fix: %w", ErrNoPatch)
	}

	if !resp.Completed {
		s.logger.Warn("Completion did not finish cleanly",
			"rule", issues[0].Rule,
			"finish_reason", resp.FinishReason)
	}

	return Normalize(content), nil
}

// Normalize strips trailing whitespace and appends a single newline
func Normalize(content string) string {
	return strings.TrimRightFunc(content, unicode.IsSpace) + "\n"
}
