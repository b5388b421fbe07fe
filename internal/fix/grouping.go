package fix

import "github.com/tildaslashalef/sonarfix/internal/sonar"

// RuleGroup holds the issues of one rule within one file, in fetch order
type RuleGroup struct {
	Rule   string
	Issues []sonar.Issue
}

// FileGroup holds the rule buckets of one file in first-seen rule order
type FileGroup struct {
	Path  string
	Rules []*RuleGroup

	index map[string]*RuleGroup
}

// Grouping is the two-level file -> rule -> issues partition of an issue
// list. Files and rules keep the order in which they were first seen.
type Grouping struct {
	Files []*FileGroup

	index map[string]*FileGroup
}

// GroupIssues partitions issues by file path, then by rule key. Every issue
// lands in exactly one bucket.
func GroupIssues(issues []sonar.Issue) *Grouping {
	g := &Grouping{index: make(map[string]*FileGroup)}

	for _, issue := range issues {
		path := issue.FilePath()

		file, ok := g.index[path]
		if !ok {
			file = &FileGroup{Path: path, index: make(map[string]*RuleGroup)}
			g.index[path] = file
			g.Files = append(g.Files, file)
		}

		bucket, ok := file.index[issue.Rule]
		if !ok {
			bucket = &RuleGroup{Rule: issue.Rule}
			file.index[issue.Rule] = bucket
			file.Rules = append(file.Rules, bucket)
		}

		bucket.Issues = append(bucket.Issues, issue)
	}

	return g
}

// File returns the group for a path, or nil
func (g *Grouping) File(path string) *FileGroup {
	return g.index[path]
}

// Rule returns the bucket for a rule key, or nil
func (f *FileGroup) Rule(rule string) *RuleGroup {
	return f.index[rule]
}

// Buckets counts the (file, rule) buckets
func (g *Grouping) Buckets() int {
	n := 0
	for _, file := range g.Files {
		n += len(file.Rules)
	}
	return n
}

// Flatten concatenates every bucket back into a single list
func (g *Grouping) Flatten() []sonar.Issue {
	var issues []sonar.Issue
	for _, file := range g.Files {
		for _, bucket := range file.Rules {
			issues = append(issues, bucket.Issues...)
		}
	}
	return issues
}
