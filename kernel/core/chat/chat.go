package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"

	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

var (
	// ErrDuplicateMessage indicates a message id seen before
	ErrDuplicateMessage = errors.New("chat: duplicate message")
	// ErrRateLimited indicates the room's send budget is spent
	ErrRateLimited = errors.New("chat: rate limited")
)

// Message is a chat line. Persistence is out of scope: history lives
// in memory only and is bounded per room.
type Message struct {
	ID     string `json:"id"`
	Room   string `json:"room"`
	Sender string `json:"sender"`
	Body   string `json:"body"`
	SentAt int64  `json:"sent_at"`
}

// Sender delivers an outbound message; the api client implements this
type Sender func(msg Message) error

// Config holds chat manager configuration
type Config struct {
	ExpectedMessages  uint
	FalsePositiveRate float64
	SendsPerSecond    int64
	SendBurst         int64
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		ExpectedMessages:  100000,
		FalsePositiveRate: 0.01,
		SendsPerSecond:    5,
		SendBurst:         10,
	}
}

// History bounds per level: cheap devices keep less scrollback
func historyLimitFor(level perf.Level) int {
	switch level {
	case perf.LevelHigh:
		return 500
	case perf.LevelMedium:
		return 200
	default:
		return 50
	}
}

// Manager keeps per-room message history with duplicate suppression
// (bloom seen-filter) and token-bucket limited outbound sends keyed by
// room.
type Manager struct {
	mu sync.RWMutex

	rooms        map[string][]Message
	historyLimit int

	seen *bloom.BloomFilter

	sendLimiter *limiter.TokenBucket
	limiterMu   sync.RWMutex

	sender Sender
	logger *utils.Logger

	accepted   uint64
	duplicates uint64
	limited    uint64
}

func NewManager(cfg Config, sender Sender, logger *utils.Logger) *Manager {
	if cfg.ExpectedMessages == 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = utils.DefaultLogger("chat")
	}

	m := &Manager{
		rooms:        make(map[string][]Message),
		historyLimit: historyLimitFor(perf.LevelMedium),
		seen:         bloom.NewWithEstimates(cfg.ExpectedMessages, cfg.FalsePositiveRate),
		sender:       sender,
		logger:       logger,
	}

	limiterStore := store.NewMemoryStore(time.Minute)
	m.sendLimiter, _ = limiter.NewTokenBucket(
		limiter.Config{
			Rate:     cfg.SendsPerSecond,
			Duration: time.Second,
			Burst:    cfg.SendBurst,
		},
		limiterStore,
	)

	return m
}

// SetQualityLevel implements perf.QualityAdjustable: the per-room
// history bound follows the level.
func (m *Manager) SetQualityLevel(level perf.Level) {
	m.mu.Lock()
	m.historyLimit = historyLimitFor(level)
	for room, history := range m.rooms {
		m.rooms[room] = trimHistory(history, m.historyLimit)
	}
	m.mu.Unlock()
}

// Append records an inbound message. Messages whose id was already
// seen are rejected with ErrDuplicateMessage.
func (m *Manager) Append(msg Message) error {
	if msg.ID == "" {
		msg.ID = utils.GenerateID()
	}
	if msg.SentAt == 0 {
		msg.SentAt = time.Now().UnixNano()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seen.TestAndAddString(msg.ID) {
		m.duplicates++
		return ErrDuplicateMessage
	}

	history := append(m.rooms[msg.Room], msg)
	m.rooms[msg.Room] = trimHistory(history, m.historyLimit)
	m.accepted++
	return nil
}

// Send records and delivers an outbound message, enforcing the room's
// token-bucket budget first.
func (m *Manager) Send(msg Message) error {
	m.limiterMu.RLock()
	allowed := m.sendLimiter == nil || m.sendLimiter.Allow(msg.Room)
	m.limiterMu.RUnlock()

	if !allowed {
		m.mu.Lock()
		m.limited++
		m.mu.Unlock()
		return ErrRateLimited
	}

	if err := m.Append(msg); err != nil {
		return err
	}
	if m.sender == nil {
		return nil
	}
	if err := m.sender(msg); err != nil {
		return utils.WrapError(err, "chat: send failed")
	}
	return nil
}

// History returns a copy of a room's messages, oldest first
func (m *Manager) History(room string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.rooms[room]
	out := make([]Message, len(history))
	copy(out, history)
	return out
}

// Stats returns chat counters
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"rooms":         len(m.rooms),
		"accepted":      m.accepted,
		"duplicates":    m.duplicates,
		"rate_limited":  m.limited,
		"history_limit": m.historyLimit,
	}
}

func trimHistory(history []Message, limit int) []Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	trimmed := make([]Message, limit)
	copy(trimmed, history[len(history)-limit:])
	return trimmed
}
