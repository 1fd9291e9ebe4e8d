// Package agent implements the AI decision step: given a rule and an email,
// ask the model what to do and collect the tool calls it emits.
package agent

import (
	"context"
	"fmt"

	"github.com/pretzelai/email-use/core/agent/llm"
	"github.com/pretzelai/email-use/core/agent/tools"
	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/pkg/resilience"
)

// Decision is the model's verdict for one (rule, email) pair.
type Decision struct {
	Summary   string
	ToolCalls []tools.ToolCall
}

// DecisionStep invokes the selected provider with the fixed tool vocabulary.
type DecisionStep struct {
	registry *llm.Registry
	breakers *resilience.BreakerGroup
}

// NewDecisionStep creates a decision step.
func NewDecisionStep(registry *llm.Registry, breakers *resilience.BreakerGroup) *DecisionStep {
	return &DecisionStep{registry: registry, breakers: breakers}
}

// Decide runs the rule against the email. All tool calls emitted by the model
// are returned in emission order; execution order downstream follows it.
// Failures surface once, wrapped in domain.ErrAIInvocation, and are never
// partially retried here.
func (s *DecisionStep) Decide(ctx context.Context, rule *domain.Rule, email *domain.EmailMessage) (*Decision, error) {
	client, err := s.registry.Resolve(rule.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIInvocation, err)
	}

	systemPrompt := buildSystemPrompt(rule)
	userPrompt := buildEmailPrompt(email)

	run := func() (any, error) {
		text, calls, err := client.CompleteWithTools(ctx, rule.Model, systemPrompt, userPrompt, tools.Vocabulary())
		if err != nil {
			return nil, err
		}
		return &Decision{Summary: text, ToolCalls: calls}, nil
	}

	var result any
	if s.breakers != nil {
		result, err = s.breakers.Execute(string(rule.Provider), run)
	} else {
		result, err = run()
	}
	if err != nil {
		return nil, err
	}
	return result.(*Decision), nil
}

// DecideDryRun is identical to Decide; the caller guarantees the returned
// tool calls never reach the executor. Used to test rules against sample
// messages without touching a live mailbox.
func (s *DecisionStep) DecideDryRun(ctx context.Context, rule *domain.Rule, email *domain.EmailMessage) (*Decision, error) {
	return s.Decide(ctx, rule, email)
}

func buildSystemPrompt(rule *domain.Rule) string {
	return fmt.Sprintf(`You are an email automation assistant. You process one inbound email at a time according to the user's instruction below. Use the available tools to act on the email when the instruction calls for it; if no action is warranted, reply with a short explanation and call no tools.

INSTRUCTION:
%s`, rule.RuleText)
}

func buildEmailPrompt(email *domain.EmailMessage) string {
	return fmt.Sprintf(`EMAIL:
Subject: %s
From: %s

%s`, email.Subject, email.From, email.Content())
}
