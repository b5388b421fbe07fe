package fixer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/tildaslashalef/sonarfix/internal/sonar"
)

// Templates for building prompts
const preamble = "You are an expert software engineer fixing issues reported by SonarCloud. " +
	"Fix the following issue report by refactoring the provided code. " +
	"Provide the complete file including all changes in the response. " +
	"Provide no description of the changes. " +
	"Ensure the behavior of the code is not changed."

const fixPromptTemplate = `{{.Preamble}} {{.Location}}
Issue details: {{.Details}}

{{.Contents}}`

var fixPrompt = template.Must(template.New("fix").Parse(fixPromptTemplate))

// promptData feeds fixPromptTemplate
type promptData struct {
	Preamble string
	Location string
	Details  string
	Contents string
}

// BuildPrompt renders the single user message sent for one rule bucket
func BuildPrompt(issues []sonar.Issue, fileContents string, rule *sonar.Rule) (string, error) {
	if len(issues) == 0 {
		return "", fmt.Errorf("building prompt: no issues")
	}

	var details string
	if rule != nil {
		details = rule.Description()
	}

	var buf bytes.Buffer
	err := fixPrompt.Execute(&buf, promptData{
		Preamble: preamble,
		Location: issueLocation(issues),
		Details:  details,
		Contents: fileContents,
	})
	if err != nil {
		return "", fmt.Errorf("building prompt: %w", err)
	}

	return buf.String(), nil
}

// issueLocation phrases the affected lines. A single issue has no trailing
// period, a list is comma-joined in bucket order and ends with one.
func issueLocation(issues []sonar.Issue) string {
	if len(issues) == 1 {
		return "The issue occurs on line " + strconv.Itoa(issues[0].Line)
	}

	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, strconv.Itoa(issue.Line))
	}
	return "The issue occurs on lines " + strings.Join(lines, ", ") + "."
}
