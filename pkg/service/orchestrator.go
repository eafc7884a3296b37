// Chat orchestrator - drives the model call / function dispatch loop
package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/frontdesk/frontdesk/pkg/db"
	"github.com/frontdesk/frontdesk/pkg/models"
	"github.com/frontdesk/frontdesk/pkg/utils"
)

// ApologyText is returned to the user whenever a turn fails terminally.
// Failures never surface as raw errors through the chat channel.
const ApologyText = "I'm sorry I am experiencing technical difficulties please try again in a moment."

// rateLimitBaseDelay is the unit of the rate-limit backoff. The wait before
// attempt n is rateLimitBaseDelay * n! so it grows super-linearly.
const rateLimitBaseDelay = 20 * time.Second

// FunctionDispatcher executes a model-issued function call and returns the
// result text to feed back into the conversation. Implementations never
// return an error; failures are reported as result text.
type FunctionDispatcher interface {
	Dispatch(ctx context.Context, name string, arguments string) string
}

// ChatOrchestrator runs one conversation turn end to end: it appends the
// user message, invokes the chat model, dispatches any function calls the
// model issues, feeds the results back, and repeats until the model answers
// with plain text. Transient failures are retried here; the dispatcher and
// the history layer never retry.
type ChatOrchestrator struct {
	chatModel           einoModel.ToolCallingChatModel
	history             *HistoryService
	dispatcher          FunctionDispatcher
	maxRetries          int
	maxRateLimitRetries int
	logger              *slog.Logger

	// sleep is swapped out in tests so backoff paths run instantly.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewChatOrchestrator(chatModel einoModel.ToolCallingChatModel, history *HistoryService, dispatcher FunctionDispatcher, maxRetries, maxRateLimitRetries int) *ChatOrchestrator {
	return &ChatOrchestrator{
		chatModel:           chatModel,
		history:             history,
		dispatcher:          dispatcher,
		maxRetries:          maxRetries,
		maxRateLimitRetries: maxRateLimitRetries,
		logger:              utils.GetLogger(),
		sleep:               sleepCtx,
	}
}

// turn is one message waiting to be appended and submitted to the model.
// Function results become turns of their own, so the loop below replaces
// the recursive resubmission the dispatch cycle would otherwise need.
type turn struct {
	msg    *schema.Message
	sentBy string
}

// SendChatMessage processes one user turn and returns the assistant's reply
// text. Turns of the same conversation are serialized; the per-conversation
// lock is held for the whole turn, function dispatch included. The returned
// error is non-nil only when ctx is cancelled; model failures degrade to
// ApologyText instead.
func (o *ChatOrchestrator) SendChatMessage(ctx context.Context, conversationID, senderName, text string) (string, error) {
	o.history.Lock(conversationID)
	defer o.history.Unlock(conversationID)

	o.history.GetOrCreate(conversationID)

	pending := []turn{{
		msg:    schema.UserMessage(text),
		sentBy: db.SenderUser + " - " + senderName,
	}}

	// The two counters are independent and scoped to this outer call:
	// timeouts never consume rate-limit budget and vice versa.
	timeoutRetries := 0
	rateLimitRetries := 0

	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]
		o.history.Append(conversationID, cur.msg, cur.sentBy)

		resp, err := o.generate(ctx, conversationID)
		for err != nil {
			switch {
			case ctx.Err() != nil:
				return ApologyText, ctx.Err()

			case isRateLimited(err):
				// Roll back the contaminating turn before waiting so a
				// concurrent diagnostics read never sees it answered late.
				o.history.RemoveLast(conversationID)
				if rateLimitRetries >= o.maxRateLimitRetries {
					o.logger.Error("Rate limit retries exhausted", "conversationID", conversationID, "error", err)
					return ApologyText, nil
				}
				delay := rateLimitBaseDelay * time.Duration(factorial(rateLimitRetries))
				o.logger.Warn("Rate limited, backing off", "conversationID", conversationID, "delay", delay, "attempt", rateLimitRetries)
				if err := o.sleep(ctx, delay); err != nil {
					return ApologyText, err
				}
				rateLimitRetries++
				o.history.Append(conversationID, cur.msg, cur.sentBy)
				resp, err = o.generate(ctx, conversationID)

			case isTimeout(err):
				timeoutRetries++
				if timeoutRetries >= o.maxRetries {
					// History keeps the user turn; it gained no answer.
					o.logger.Error("Timeout retries exhausted", "conversationID", conversationID, "error", err)
					return ApologyText, nil
				}
				o.logger.Warn("Model call timed out, retrying", "conversationID", conversationID, "attempt", timeoutRetries)
				resp, err = o.generate(ctx, conversationID)

			default:
				// The model rejected the request outright. Remove the turn
				// that provoked it so the next attempt starts clean.
				o.logger.Error("Model call failed", "conversationID", conversationID, "error", err)
				o.history.RemoveLast(conversationID)
				return ApologyText, nil
			}
		}

		finish := finishReason(resp)
		if finish == models.FinishReasonToolCalls || finish == models.FinishReasonFunctionCall {
			// The assistant message carries the tool call directives; it must
			// enter history before the tool results do.
			o.history.Append(conversationID, resp, db.SenderAssistant)
			for _, tc := range resp.ToolCalls {
				result := o.dispatcher.Dispatch(ctx, tc.Function.Name, tc.Function.Arguments)
				o.logger.Info("Dispatched function call", "conversationID", conversationID, "function", tc.Function.Name)
				pending = append(pending, turn{
					msg: &schema.Message{
						Role:       schema.Tool,
						Content:    result,
						ToolCallID: tc.ID,
						ToolName:   tc.Function.Name,
					},
					sentBy: db.SenderFunction,
				})
			}
			continue
		}

		// stop, length, content_filter and anything else end the turn.
		if resp.Content != "" {
			o.history.Append(conversationID, resp, db.SenderAssistant)
		}
		return resp.Content, nil
	}

	return "", nil
}

func (o *ChatOrchestrator) generate(ctx context.Context, conversationID string) (*schema.Message, error) {
	return o.chatModel.Generate(ctx, o.history.GetOrCreate(conversationID))
}

func finishReason(msg *schema.Message) string {
	if msg.ResponseMeta == nil {
		return ""
	}
	return msg.ResponseMeta.FinishReason
}

// isTimeout reports whether the error is a transport timeout, meaning the
// identical request is safe to resubmit.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// isRateLimited reports whether the provider rejected the request for rate
// limiting. Providers surface this as HTTP 429 or a rate_limit error type.
func isRateLimited(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "rate_limit")
}

func factorial(n int) int {
	f := 1
	for i := 2; i <= n; i++ {
		f *= i
	}
	return f
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
