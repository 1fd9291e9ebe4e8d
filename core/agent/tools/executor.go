package tools

import (
	"context"
	"fmt"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

// Executor translates emitted tool calls into mailbox mutations.
type Executor struct {
	provider out.MailboxProvider
}

// NewExecutor creates an executor bound to one user's mailbox provider.
func NewExecutor(provider out.MailboxProvider) *Executor {
	return &Executor{provider: provider}
}

// ExecuteAll runs every call in emission order and returns one result per
// input call, same order. An individual failure never short-circuits the
// remaining calls; it is captured in that call's result.
func (e *Executor) ExecuteAll(ctx context.Context, calls []ToolCall, email EmailContext) []domain.ToolCallResult {
	results := make([]domain.ToolCallResult, len(calls))
	for i, call := range calls {
		results[i] = e.execute(ctx, call, email)
	}
	return results
}

func (e *Executor) execute(ctx context.Context, call ToolCall, email EmailContext) domain.ToolCallResult {
	result := domain.ToolCallResult{Tool: call.Name, Args: call.Args}

	switch call.Name {
	case ToolSendEmail:
		req := &out.SendRequest{
			To:      stringArg(call.Args, "to"),
			Subject: stringArg(call.Args, "subject"),
			Body:    stringArg(call.Args, "body"),
		}
		if boolArg(call.Args, "isReply") {
			req.ReplyToID = email.ID
		}
		sent, err := e.provider.Send(ctx, req)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		result.Data = sent

	case ToolAddLabel:
		labelID, err := e.provider.AddLabel(ctx, email.ID, stringArg(call.Args, "label"), stringArg(call.Args, "hexColor"))
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		result.Data = map[string]string{"labelId": labelID, "labelName": stringArg(call.Args, "label")}

	case ToolArchiveEmail:
		result = e.simple(ctx, result, e.provider.Archive, email.ID)
	case ToolMarkAsRead:
		result = e.simple(ctx, result, e.provider.MarkRead, email.ID)
	case ToolMarkAsUnread:
		result = e.simple(ctx, result, e.provider.MarkUnread, email.ID)
	case ToolStarEmail:
		result = e.simple(ctx, result, e.provider.Star, email.ID)
	case ToolUnstarEmail:
		result = e.simple(ctx, result, e.provider.Unstar, email.ID)

	default:
		result.Error = fmt.Sprintf("unknown tool: %s", call.Name)
	}

	return result
}

func (e *Executor) simple(ctx context.Context, result domain.ToolCallResult, op func(context.Context, string) error, messageID string) domain.ToolCallResult {
	if err := op(ctx, messageID); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}
