package rag

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultPromptText is the answer prompt. Two placeholders, always rendered,
// even when Information is empty (the model is then asked to answer without
// grounding context).
const DefaultPromptText = `Answer the following question :

Question:
{{.Question}}

Base your answer on the following information:
{{.Information}}
`

// PromptTemplate renders the question/information pair into the final prompt.
// Rendering is pure string substitution; no escaping of any kind.
type PromptTemplate struct {
	tmpl *template.Template
}

// NewPromptTemplate parses text into a PromptTemplate. The text must
// reference .Question and .Information.
func NewPromptTemplate(text string) (*PromptTemplate, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &PromptTemplate{tmpl: tmpl}, nil
}

// DefaultPromptTemplate returns the template built from DefaultPromptText.
func DefaultPromptTemplate() *PromptTemplate {
	pt, err := NewPromptTemplate(DefaultPromptText)
	if err != nil {
		panic(err) // the default text is a constant, parse cannot fail
	}
	return pt
}

// Render fills the template with question and information verbatim.
func (p *PromptTemplate) Render(question, information string) (string, error) {
	var b strings.Builder
	data := struct {
		Question    string
		Information string
	}{Question: question, Information: information}

	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return b.String(), nil
}
