package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexora/campus-copilot/internal/log"
)

// ErrNotFound is returned when a session ID matches no conversation.
var ErrNotFound = errors.New("conversation not found")

// titleLimit caps auto-generated conversation titles.
const titleLimit = 50

// Querier is the database interface the store consumes. Both
// *pgxpool.Pool and pgx.Tx satisfy it. Defined on the consumer side so
// tests can substitute a fake.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages conversation persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     Querier
	pool   *pgxpool.Pool // transaction support; nil in unit tests
	logger log.Logger
}

// New creates a Store. pool may be nil, in which case AddMessages runs
// without a transaction (unit tests with fake queriers).
func New(db Querier, pool *pgxpool.Pool, logger log.Logger) *Store {
	return &Store{db: db, pool: pool, logger: logger}
}

const selectConversation = `
	SELECT id, session_id, COALESCE(user_id, ''), title, total_messages,
	       is_active, created_at, last_activity
	FROM conversations`

// GetOrCreate returns the conversation for sessionID, creating it if it
// does not exist. Touching an existing conversation refreshes its
// last_activity timestamp.
func (s *Store) GetOrCreate(ctx context.Context, sessionID, userID string) (*Conversation, error) {
	conv, err := s.scanConversation(
		s.db.QueryRow(ctx, selectConversation+` WHERE session_id = $1`, sessionID))
	switch {
	case err == nil:
		if _, err := s.db.Exec(ctx,
			`UPDATE conversations SET last_activity = now() WHERE id = $1`, conv.ID); err != nil {
			return nil, fmt.Errorf("failed to touch conversation: %w", err)
		}
		return conv, nil
	case errors.Is(err, pgx.ErrNoRows):
		// fall through to create
	default:
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	var uid *string
	if userID != "" {
		uid = &userID
	}
	conv, err = s.scanConversation(s.db.QueryRow(ctx, `
		INSERT INTO conversations (session_id, user_id)
		VALUES ($1, $2)
		RETURNING id, session_id, COALESCE(user_id, ''), title, total_messages,
		          is_active, created_at, last_activity`,
		sessionID, uid))
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Info("created conversation", "conversation_id", conv.ID, "session_id", sessionID)
	return conv, nil
}

// Get returns the conversation for sessionID or ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	conv, err := s.scanConversation(
		s.db.QueryRow(ctx, selectConversation+` WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// AddMessages appends messages to a conversation and refreshes its
// metadata (message count, last_activity, auto-title from the first
// user turn). All writes happen in one transaction when a pool is
// available; a failure rolls everything back.
func (s *Store) AddMessages(ctx context.Context, conversationID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	if s.pool == nil {
		return s.addMessages(ctx, s.db, conversationID, messages)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	if err := s.addMessages(ctx, tx, conversationID, messages); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) addMessages(ctx context.Context, q Querier, conversationID uuid.UUID, messages []*Message) error {
	for i, msg := range messages {
		if _, err := q.Exec(ctx, `
			INSERT INTO messages (conversation_id, role, content, intent, success,
			                      input_tokens, output_tokens, response_time_ms, error_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			conversationID, msg.Role, msg.Content, msg.Intent, msg.Success,
			msg.InputTokens, msg.OutputTokens, msg.ResponseTimeMS, msg.ErrorMessage); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	// Auto-title from the first user turn in this batch, applied only
	// while the conversation is still untitled.
	for _, msg := range messages {
		if msg.Role == RoleUser {
			if _, err := q.Exec(ctx, `
				UPDATE conversations SET title = $2
				WHERE id = $1 AND title = ''`,
				conversationID, titleFrom(msg.Content)); err != nil {
				return fmt.Errorf("failed to set conversation title: %w", err)
			}
			break
		}
	}

	if _, err := q.Exec(ctx, `
		UPDATE conversations
		SET total_messages = (SELECT count(*) FROM messages WHERE conversation_id = $1),
		    last_activity = now()
		WHERE id = $1`,
		conversationID); err != nil {
		return fmt.Errorf("failed to update conversation metadata: %w", err)
	}

	s.logger.Debug("added messages", "conversation_id", conversationID, "count", len(messages))
	return nil
}

// History returns up to limit most recent turns for sessionID in
// chronological order. A session with no conversation yields an empty
// history, not an error.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	conv, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, role, content, intent, success,
		       input_tokens, output_tokens, response_time_ms, error_message, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		conv.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Intent,
			&m.Success, &m.InputTokens, &m.OutputTokens, &m.ResponseTimeMS,
			&m.ErrorMessage, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading message rows: %w", err)
	}

	// Newest-first from the query; reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	s.logger.Debug("retrieved history", "session_id", sessionID, "count", len(messages))
	return messages, nil
}

// Deactivate marks a conversation inactive without deleting its turns.
// Returns false when the session does not exist.
func (s *Store) Deactivate(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET is_active = FALSE, last_activity = now()
		WHERE session_id = $1`,
		sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	s.logger.Info("deactivated conversation", "session_id", sessionID)
	return true, nil
}

// Delete removes a conversation and all its messages (CASCADE).
// Returns false when the session does not exist.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	s.logger.Info("deleted conversation", "session_id", sessionID)
	return true, nil
}

func (s *Store) scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	if err := row.Scan(&c.ID, &c.SessionID, &c.UserID, &c.Title, &c.TotalMessages,
		&c.IsActive, &c.CreatedAt, &c.LastActivity); err != nil {
		return nil, err
	}
	return &c, nil
}

// titleFrom derives a conversation title from the first user message.
// Truncation counts runes, not bytes; slicing mid-character would produce
// invalid UTF-8 that Postgres rejects for TEXT columns.
func titleFrom(content string) string {
	runes := []rune(content)
	if len(runes) > titleLimit {
		return strings.TrimSpace(string(runes[:titleLimit])) + "..."
	}
	return strings.TrimSpace(content)
}
