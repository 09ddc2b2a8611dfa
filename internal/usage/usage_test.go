package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Accumulates(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.AddGeneration(100, 40)
	tr.AddGeneration(250, 80)
	tr.AddToolCall(false)
	tr.AddToolCall(true)
	tr.AddRetry()

	got := tr.Totals()
	assert.Equal(t, 2, got.Requests)
	assert.Equal(t, 350, got.InputTokens)
	assert.Equal(t, 120, got.OutputTokens)
	assert.Equal(t, 470, got.TotalTokens)
	assert.Equal(t, 2, got.ToolCalls)
	assert.Equal(t, 1, got.FailedTools)
	assert.Equal(t, 1, got.RetryAttempts)
}

func TestTracker_ConcurrentAdds(t *testing.T) {
	t.Parallel()

	tr := NewTracker()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AddGeneration(10, 5)
			tr.AddToolCall(false)
		}()
	}
	wg.Wait()

	got := tr.Totals()
	assert.Equal(t, 50, got.Requests)
	assert.Equal(t, 500, got.InputTokens)
	assert.Equal(t, 250, got.OutputTokens)
	assert.Equal(t, 50, got.ToolCalls)
	assert.Zero(t, got.FailedTools)
}

func TestTracker_ZeroValueTotals(t *testing.T) {
	t.Parallel()

	got := NewTracker().Totals()
	assert.Zero(t, got.Requests)
	assert.Zero(t, got.TotalTokens)
}
