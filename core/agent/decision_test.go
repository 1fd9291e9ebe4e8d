package agent

import (
	"strings"
	"testing"

	"github.com/pretzelai/email-use/core/domain"
)

func TestBuildEmailPrompt(t *testing.T) {
	email := &domain.EmailMessage{
		Subject: "Invoice overdue",
		From:    "billing@vendor.com",
		Body:    "Please pay invoice #42.",
		Snippet: "Please pay...",
	}
	prompt := buildEmailPrompt(email)
	for _, want := range []string{"Subject: Invoice overdue", "From: billing@vendor.com", "Please pay invoice #42."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildEmailPromptFallsBackToSnippet(t *testing.T) {
	email := &domain.EmailMessage{Subject: "s", From: "f", Snippet: "snippet only"}
	if !strings.Contains(buildEmailPrompt(email), "snippet only") {
		t.Error("empty body should fall back to snippet")
	}
}

func TestBuildSystemPromptCarriesRuleText(t *testing.T) {
	rule := &domain.Rule{RuleText: "Label every newsletter as News and archive it."}
	prompt := buildSystemPrompt(rule)
	if !strings.Contains(prompt, rule.RuleText) {
		t.Error("system prompt must embed the rule text")
	}
}
