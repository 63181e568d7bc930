package ai

import (
	_ "embed"
	"errors"
	"strings"
)

//go:embed prompts/analysis.txt
var analysisPromptText string

// PromptVars are the substitutions applied to the user prompt template.
type PromptVars struct {
	TranscriptFilename string
	SalesRepName       string
	TranscriptText     string
	CallID             string
	Source             string
}

// LoadAnalysisPrompt splits the embedded prompt file into its system
// and user parts. Section headers are lines containing "system prompt"
// or "user prompt", matched case-insensitively.
func LoadAnalysisPrompt() (system, user string, err error) {
	var (
		section  string
		sysLines []string
		usrLines []string
	)
	for _, line := range strings.Split(analysisPromptText, "\n") {
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(line, "#") && strings.Contains(lower, "system prompt"):
			section = "system"
			continue
		case strings.HasPrefix(line, "#") && strings.Contains(lower, "user prompt"):
			section = "user"
			continue
		}
		switch section {
		case "system":
			sysLines = append(sysLines, line)
		case "user":
			usrLines = append(usrLines, line)
		}
	}
	system = strings.TrimSpace(strings.Join(sysLines, "\n"))
	user = strings.TrimSpace(strings.Join(usrLines, "\n"))
	if system == "" || user == "" {
		return "", "", errors.New("analysis prompt is missing a system or user section")
	}
	return system, user, nil
}

// RenderUserPrompt substitutes vars into the user prompt template.
func RenderUserPrompt(template string, vars PromptVars) string {
	r := strings.NewReplacer(
		"{TRANSCRIPT_FILENAME}", vars.TranscriptFilename,
		"{SALES_REP_NAME}", vars.SalesRepName,
		"{TRANSCRIPT_TEXT}", vars.TranscriptText,
		"{CALL_ID}", vars.CallID,
		"{SOURCE}", vars.Source,
	)
	return r.Replace(template)
}
