package analyzer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// clausePlaceholder marks where the clause text is substituted into the
// prompt template.
const clausePlaceholder = "{clause_text}"

const defaultPromptTemplate = `You are a legal analysis AI assistant. Analyze the following legal contract clause and provide a structured response.

Instructions:
1. Identify the clause type (e.g., Termination, Liability, Confidentiality, Payment, IP Rights, etc.)
2. Provide a plain English summary that a non-lawyer can understand
3. Assess if there are any significant legal risks or red flags
4. Provide reasoning for any risk flags

Be objective and focus on potential power imbalances, hidden conditions, or unusual terms that could disadvantage one party.

Clause to analyze:
{clause_text}

Please respond in the following JSON format:
{
    "clause_type": "The type of legal clause",
    "summary": "Plain English explanation of what this clause means and does",
    "risk_flag": true/false,
    "risk_reason": "Explanation of why this clause might be risky (only if risk_flag is true)",
    "confidence": 0.85
}

Ensure your response is valid JSON and nothing else.`

// loadPromptTemplate reads the template at path, or returns the built-in
// template when path is empty.
func loadPromptTemplate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return defaultPromptTemplate, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	template := strings.TrimSpace(string(data))
	if template == "" {
		return "", errors.New("prompt template is empty")
	}
	if !strings.Contains(template, clausePlaceholder) {
		return "", fmt.Errorf("prompt template missing %s placeholder", clausePlaceholder)
	}
	return template, nil
}

func (a *Analyzer) buildPrompt(clauseText string) string {
	return strings.ReplaceAll(a.prompt, clausePlaceholder, clauseText)
}
