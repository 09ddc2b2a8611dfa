package service

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexora/campus-copilot/internal/conversation"
	"github.com/nexora/campus-copilot/internal/log"
	"github.com/nexora/campus-copilot/internal/moderation"
	"github.com/nexora/campus-copilot/internal/orchestrator"
	"github.com/nexora/campus-copilot/internal/usage"
)

type fakeAgent struct {
	text    string
	err     error
	calls   int
	history []*ai.Message
}

func (f *fakeAgent) Execute(_ context.Context, _ string, history []*ai.Message, _ *usage.Tracker) (*orchestrator.Response, error) {
	f.calls++
	f.history = history
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Response{Text: f.text}, nil
}

type fakeGate struct {
	verdict moderation.Verdict
}

func (f *fakeGate) Moderate(_ context.Context, _ string) moderation.Verdict {
	return f.verdict
}

type fakeConversations struct {
	conv       *conversation.Conversation
	history    []*conversation.Message
	saved      [][]*conversation.Message
	getErr     error
	historyErr error
	addErr     error
}

func (f *fakeConversations) GetOrCreate(_ context.Context, sessionID, userID string) (*conversation.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.conv == nil {
		f.conv = &conversation.Conversation{ID: uuid.New(), SessionID: sessionID, UserID: userID}
	}
	return f.conv, nil
}

func (f *fakeConversations) AddMessages(_ context.Context, _ uuid.UUID, messages []*conversation.Message) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.saved = append(f.saved, messages)
	return nil
}

func (f *fakeConversations) History(_ context.Context, _ string, _ int) ([]*conversation.Message, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func newTestCopilot(t *testing.T, agent *fakeAgent, gate *fakeGate, convs ConversationStore) *Copilot {
	t.Helper()
	c, err := New(Config{
		Agent:         agent,
		Gate:          gate,
		Conversations: convs,
		Logger:        log.NewNop(),
	})
	require.NoError(t, err)
	return c
}

func TestChat_HappyPath(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{text: "The next shuttle leaves at 17:30."}
	convs := &fakeConversations{}
	c := newTestCopilot(t, agent, &fakeGate{}, convs)

	resp := c.Chat(t.Context(), Request{Message: "When is the next bus?", SessionID: "sess-1", UserID: "42"})

	assert.True(t, resp.Success)
	assert.Equal(t, "The next shuttle leaves at 17:30.", resp.Response)
	assert.Equal(t, IntentCampus, resp.Intent)
	assert.Equal(t, orchestrator.AgentName, resp.AgentUsed)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.True(t, resp.Moderated)
	assert.False(t, resp.ContentFlagged)
	require.NotNil(t, resp.Usage)

	// User turn saved first, then the model turn with metadata.
	require.Len(t, convs.saved, 2)
	assert.Equal(t, conversation.RoleUser, convs.saved[0][0].Role)
	assert.Equal(t, "When is the next bus?", convs.saved[0][0].Content)
	assert.Equal(t, conversation.RoleModel, convs.saved[1][0].Role)
	assert.Equal(t, IntentCampus, convs.saved[1][0].Intent)
	assert.True(t, convs.saved[1][0].Success)
}

func TestChat_ModerationShortCircuit(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{text: "should never appear"}
	convs := &fakeConversations{}
	gate := &fakeGate{verdict: moderation.Verdict{
		Flagged: true,
		Reason:  "Content flagged for: violence",
	}}
	c := newTestCopilot(t, agent, gate, convs)

	resp := c.Chat(t.Context(), Request{
		Message:   "I hate everyone and want to bomb the cafeteria",
		SessionID: "sess-1",
	})

	assert.True(t, resp.Success)
	assert.True(t, resp.Moderated)
	assert.True(t, resp.ContentFlagged)
	assert.Equal(t, IntentModeration, resp.Intent)
	assert.Equal(t, "Content Moderation", resp.AgentUsed)
	assert.Equal(t, "Content flagged for: violence", resp.ModerationReason)
	assert.Equal(t, moderation.ResponseMessage(), resp.Response)

	// The model is never invoked and nothing is persisted.
	assert.Zero(t, agent.calls)
	assert.Empty(t, convs.saved)
}

func TestChat_HistoryPassedBeforeSave(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{text: "answer"}
	convs := &fakeConversations{history: []*conversation.Message{
		{Role: conversation.RoleUser, Content: "earlier question"},
		{Role: conversation.RoleModel, Content: "earlier answer"},
	}}
	c := newTestCopilot(t, agent, &fakeGate{}, convs)

	c.Chat(t.Context(), Request{Message: "follow-up", SessionID: "sess-1"})

	// The agent sees the prior turns but not the current message.
	require.Len(t, agent.history, 2)
	assert.Equal(t, ai.RoleUser, agent.history[0].Role)
	assert.Equal(t, "earlier question", agent.history[0].Content[0].Text)
	assert.Equal(t, ai.RoleModel, agent.history[1].Role)
}

func TestChat_GeneratesSessionID(t *testing.T) {
	t.Parallel()

	c := newTestCopilot(t, &fakeAgent{text: "hi"}, &fakeGate{}, &fakeConversations{})

	resp := c.Chat(t.Context(), Request{Message: "hello"})

	require.NotEmpty(t, resp.SessionID)
	_, err := uuid.Parse(resp.SessionID)
	assert.NoError(t, err)
}

func TestChat_OrchestratorFailure(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{err: errors.New("model exploded")}
	convs := &fakeConversations{}
	c := newTestCopilot(t, agent, &fakeGate{}, convs)

	resp := c.Chat(t.Context(), Request{Message: "hello", SessionID: "sess-1"})

	assert.False(t, resp.Success)
	assert.Equal(t, ApologyMessage, resp.Response)
	assert.Equal(t, IntentError, resp.Intent)
	assert.Equal(t, "model exploded", resp.Error)

	// User turn plus a best-effort error turn.
	require.Len(t, convs.saved, 2)
	errTurn := convs.saved[1][0]
	assert.Equal(t, IntentError, errTurn.Intent)
	assert.False(t, errTurn.Success)
	assert.Equal(t, "model exploded", errTurn.ErrorMessage)
}

func TestChat_PersistenceFailureDoesNotPanic(t *testing.T) {
	t.Parallel()

	convs := &fakeConversations{getErr: errors.New("db down")}
	c := newTestCopilot(t, &fakeAgent{text: "hi"}, &fakeGate{}, convs)

	resp := c.Chat(t.Context(), Request{Message: "hello", SessionID: "sess-1"})

	assert.False(t, resp.Success)
	assert.Equal(t, ApologyMessage, resp.Response)
	assert.Equal(t, "sess-1", resp.SessionID)
}

func TestChat_SaveModelTurnFailureStillAnswers(t *testing.T) {
	t.Parallel()

	// AddMessages fails for every save; the user turn failure already
	// downgrades to the apology, so exercise only the final save by
	// failing after the first call.
	convs := &failAfterFirstSave{}
	c := newTestCopilot(t, &fakeAgent{text: "the answer"}, &fakeGate{}, convs)

	resp := c.Chat(t.Context(), Request{Message: "hello", SessionID: "sess-1"})

	assert.True(t, resp.Success)
	assert.Equal(t, "the answer", resp.Response)
}

type failAfterFirstSave struct {
	fakeConversations
	calls int
}

func (f *failAfterFirstSave) AddMessages(ctx context.Context, id uuid.UUID, messages []*conversation.Message) error {
	f.calls++
	if f.calls > 1 {
		return errors.New("disk full")
	}
	return f.fakeConversations.AddMessages(ctx, id, messages)
}
