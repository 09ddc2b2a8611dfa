package orchestrator

import (
	"slices"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
)

// TokenBudget bounds how much conversation history goes into the
// context window.
type TokenBudget struct {
	MaxHistoryTokens int
}

// DefaultTokenBudget returns a conservative default for Gemini models.
func DefaultTokenBudget() TokenBudget {
	return TokenBudget{
		MaxHistoryTokens: 8000,
	}
}

// estimateTokens gives a rough token count: rune count divided by 2.
// Conservative for both English (~4 chars/token) and CJK (~1.5).
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}

func estimateMessagesTokens(msgs []*ai.Message) int {
	total := 0
	for _, msg := range msgs {
		for _, part := range msg.Content {
			total += estimateTokens(part.Text)
		}
	}
	return total
}

// truncateHistory drops the oldest messages until the history fits the
// budget. A leading system message is always kept.
func (a *Agent) truncateHistory(msgs []*ai.Message, budget int) []*ai.Message {
	if len(msgs) == 0 {
		return msgs
	}

	currentTokens := estimateMessagesTokens(msgs)
	if currentTokens <= budget {
		return msgs
	}

	a.logger.Debug("truncating history",
		"current_tokens", currentTokens,
		"budget", budget,
		"message_count", len(msgs),
	)

	result := make([]*ai.Message, 0, len(msgs))

	startIdx := 0
	if msgs[0].Role == ai.RoleSystem {
		result = append(result, msgs[0])
		startIdx = 1
	}

	// Walk newest to oldest until the budget is spent, then restore
	// chronological order.
	remaining := budget - estimateMessagesTokens(result)
	kept := make([]*ai.Message, 0)
	for i := len(msgs) - 1; i >= startIdx; i-- {
		msgTokens := estimateMessagesTokens([]*ai.Message{msgs[i]})
		if remaining < msgTokens {
			break
		}
		kept = append(kept, msgs[i])
		remaining -= msgTokens
	}
	slices.Reverse(kept)

	return append(result, kept...)
}
