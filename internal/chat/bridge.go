package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tradeboard/internal/domain"
	"tradeboard/internal/infra"
)

const (
	// historyCap bounds a session to the last 10 exchanges (20 turns);
	// older turns are evicted oldest-first.
	historyCap = 20
	// promptContextTurns is how much history is inlined into the prompt.
	promptContextTurns = 4

	defaultSessionID = "default"
)

// Store persists chat sessions beyond process lifetime. Optional: the bridge
// works fully in memory when nil.
type Store interface {
	AppendChatTurns(sessionID string, turns []domain.ChatTurn) error
	ChatHistory(sessionID string, limit int) ([]domain.ChatTurn, error)
	DeleteChatSession(sessionID string) error
}

// Bridge is a stateless request/response wrapper around the generation API.
// It attaches market context and bounded session history to each call and
// guarantees the UI always receives some response: any API failure degrades
// to a locally computed canned reply instead of an error.
type Bridge struct {
	gen     domain.TextGenerator
	store   Store
	metrics *infra.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string][]domain.ChatTurn
}

// NewBridge creates a chat bridge. store and metrics may be nil.
func NewBridge(gen domain.TextGenerator, store Store, metrics *infra.Metrics, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		gen:      gen,
		store:    store,
		metrics:  metrics,
		logger:   logger.With("module", "chat"),
		sessions: make(map[string][]domain.ChatTurn),
	}
}

// Respond answers one user message for a session. It never returns an error:
// on API failure (timeout, quota, malformed response) or when no credential
// is configured, the reply comes from the deterministic fallback table and is
// flagged as such.
func (b *Bridge) Respond(ctx context.Context, message, sessionID string, snapshot *domain.Quote) domain.ChatReply {
	if b.metrics != nil {
		b.metrics.RecordChatRequest()
	}
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	if b.gen == nil || !b.gen.Configured() {
		return b.fallback(message, sessionID, snapshot)
	}

	prompt := b.buildPrompt(message, sessionID, snapshot)
	text, err := b.gen.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		b.logger.Warn("generation failed, serving canned reply",
			slog.String("session", sessionID), slog.Any("error", err))
		return b.fallback(message, sessionID, snapshot)
	}

	b.record(sessionID, message, text)
	return domain.ChatReply{Text: text, SessionID: sessionID}
}

func (b *Bridge) fallback(message, sessionID string, snapshot *domain.Quote) domain.ChatReply {
	if b.metrics != nil {
		b.metrics.RecordChatFallback()
	}
	return domain.ChatReply{
		Text:      fallbackReply(message, snapshot),
		SessionID: sessionID,
		Fallback:  true,
	}
}

// buildPrompt composes the bounded prompt: fixed system instruction, market
// snapshot, the session's recent turns, then the new message.
func (b *Bridge) buildPrompt(message, sessionID string, snapshot *domain.Quote) string {
	var sb strings.Builder
	sb.WriteString("You are an expert AI trading assistant specializing in cryptocurrency and financial markets.\n\n")

	if snapshot != nil {
		fmt.Fprintf(&sb, "Current market data for %s:\n", snapshot.Pair.String())
		fmt.Fprintf(&sb, "- Price: $%s\n", snapshot.Price.StringFixed(2))
		fmt.Fprintf(&sb, "- 24h change: %s%%\n", snapshot.Change24h.StringFixed(2))
		// High/low are not part of every provider's quote payload.
		if !snapshot.High24h.IsZero() {
			fmt.Fprintf(&sb, "- 24h high: $%s\n", snapshot.High24h.StringFixed(2))
		}
		if !snapshot.Low24h.IsZero() {
			fmt.Fprintf(&sb, "- 24h low: $%s\n", snapshot.Low24h.StringFixed(2))
		}
		fmt.Fprintf(&sb, "- 24h volume: %s\n\n", snapshot.Volume24h.StringFixed(2))
	}

	sb.WriteString("Your role:\n")
	sb.WriteString("- Provide professional trading analysis and insights\n")
	sb.WriteString("- Use current market data in your responses when relevant\n")
	sb.WriteString("- Focus on risk management and education\n")
	sb.WriteString("- Keep responses concise but informative\n")
	sb.WriteString("- Never present advice as investment recommendations\n\n")

	history := b.recentTurns(sessionID, promptContextTurns)
	if len(history) > 0 {
		sb.WriteString("Previous conversation context:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "User's current question: %s", message)
	return sb.String()
}

func (b *Bridge) recentTurns(sessionID string, n int) []domain.ChatTurn {
	b.mu.Lock()
	defer b.mu.Unlock()
	turns := b.sessions[sessionID]
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]domain.ChatTurn, len(turns))
	copy(out, turns)
	return out
}

// record appends the (user, assistant) pair, trims the session to its cap
// and mirrors the pair to the store when one is configured.
func (b *Bridge) record(sessionID, message, reply string) {
	now := time.Now()
	pair := []domain.ChatTurn{
		{Role: domain.RoleUser, Content: message, Timestamp: now},
		{Role: domain.RoleAssistant, Content: reply, Timestamp: now},
	}

	b.mu.Lock()
	turns := append(b.sessions[sessionID], pair...)
	if len(turns) > historyCap {
		turns = turns[len(turns)-historyCap:]
	}
	b.sessions[sessionID] = turns
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.AppendChatTurns(sessionID, pair); err != nil {
			// Persistence is best effort; the chat response already left.
			b.logger.Warn("failed to persist chat turns",
				slog.String("session", sessionID), slog.Any("error", err))
		}
	}
}

// History returns the session's turns, falling back to the store for
// sessions that predate this process.
func (b *Bridge) History(sessionID string) []domain.ChatTurn {
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	b.mu.Lock()
	turns, ok := b.sessions[sessionID]
	if ok {
		out := make([]domain.ChatTurn, len(turns))
		copy(out, turns)
		b.mu.Unlock()
		return out
	}
	b.mu.Unlock()

	if b.store == nil {
		return nil
	}
	stored, err := b.store.ChatHistory(sessionID, historyCap)
	if err != nil {
		b.logger.Warn("failed to load chat history",
			slog.String("session", sessionID), slog.Any("error", err))
		return nil
	}
	return stored
}

// Reset discards the session's history entirely, memory and store. There is
// no soft delete.
func (b *Bridge) Reset(sessionID string) {
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	b.mu.Lock()
	delete(b.sessions, sessionID)
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.DeleteChatSession(sessionID); err != nil {
			b.logger.Warn("failed to delete stored chat session",
				slog.String("session", sessionID), slog.Any("error", err))
		}
	}
	b.logger.Info("chat session reset", slog.String("session", sessionID))
}
