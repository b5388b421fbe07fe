// Package extractor provides utilities for extracting file contents from LLM responses
package extractor

import (
	"regexp"
	"strings"

	"github.com/tildaslashalef/sonarfix/internal/loggy"
)

// fencedFile matches a response that is exactly one fenced code block with
// an optional info string, e.g. "```go\n...\n```".
var fencedFile = regexp.MustCompile("(?s)\\A\\s*```[\\w+#.-]*[ \\t]*\\r?\\n(.*?)\\r?\\n?```\\s*\\z")

// CodeExtractor unwraps file contents that a model returned inside a
// markdown code fence
type CodeExtractor struct {
	logger *loggy.Logger
}

// NewCodeExtractor creates a new CodeExtractor
func NewCodeExtractor(logger *loggy.Logger) *CodeExtractor {
	return &CodeExtractor{
		logger: logger,
	}
}

// ExtractFile returns the body of the fence when the whole response is a
// single fenced block, and reports whether it unwrapped anything. Any other
// response, including one with prose around the block or with nested
// fences, is returned unchanged.
func (e *CodeExtractor) ExtractFile(content string) (string, bool) {
	matches := fencedFile.FindStringSubmatch(content)
	if len(matches) != 2 {
		return content, false
	}

	body := matches[1]
	if strings.Contains(body, "\n```") || strings.HasPrefix(body, "```") {
		e.logger.Debug("Response has nested code fences, leaving it unchanged")
		return content, false
	}

	e.logger.Debug("Stripped code fence from response",
		"original_length", len(content),
		"extracted_length", len(body))
	return body, true
}
