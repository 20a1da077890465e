package memory

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoUser is returned when a user id is empty.
var ErrNoUser = errors.New("memory: user id required")

// Exchange is one user utterance and the robot's reply.
type Exchange struct {
	User  string    `json:"user"`
	Robot string    `json:"robot"`
	At    time.Time `json:"at"`
}

// PersonMemory stores what the robot knows about one user.
type PersonMemory struct {
	UserID    string     `json:"user_id"`
	Facts     []string   `json:"facts"`
	Exchanges []Exchange `json:"exchanges"`
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
}

// HasFact checks if the person has a fact containing query (case-insensitive).
func (p *PersonMemory) HasFact(query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	for _, fact := range p.Facts {
		if strings.Contains(strings.ToLower(fact), query) {
			return true
		}
	}
	return false
}

// SessionID names the conversation thread for a user.
func SessionID(userID string) string {
	return "reachy-mini-" + userID
}

// person returns the record for userID, creating it. Callers hold m.mu.
func (m *Memory) person(userID string) *PersonMemory {
	p, ok := m.People[userID]
	if !ok {
		now := m.now()
		p = &PersonMemory{UserID: userID, Facts: []string{}, FirstSeen: now, LastSeen: now}
		m.People[userID] = p
	}
	return p
}

// SaveExchange appends an exchange, dropping the oldest past the limit.
func (m *Memory) SaveExchange(ctx context.Context, userID, userText, robotText string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrNoUser
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	p := m.person(userID)
	p.LastSeen = m.now()
	p.Exchanges = append(p.Exchanges, Exchange{User: userText, Robot: robotText, At: p.LastSeen})
	if over := len(p.Exchanges) - m.maxExchanges; over > 0 {
		p.Exchanges = append([]Exchange(nil), p.Exchanges[over:]...)
	}
	m.mu.Unlock()

	return m.Save()
}

// Conclude stores a fact about the user. Duplicate facts are ignored.
func (m *Memory) Conclude(ctx context.Context, userID, fact string) error {
	userID = strings.TrimSpace(userID)
	fact = strings.TrimSpace(fact)
	if userID == "" {
		return ErrNoUser
	}
	if fact == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	p := m.person(userID)
	for _, f := range p.Facts {
		if strings.EqualFold(f, fact) {
			m.mu.Unlock()
			return nil
		}
	}
	p.Facts = append(p.Facts, fact)
	p.LastSeen = m.now()
	m.mu.Unlock()

	m.logger.Info("conclusion stored", "user", userID, "fact", fact)
	return m.Save()
}

// Person returns a copy of the record for userID, or nil.
func (m *Memory) Person(userID string) *PersonMemory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.People[userID]
	if !ok {
		return nil
	}
	cp := *p
	cp.Facts = append([]string(nil), p.Facts...)
	cp.Exchanges = append([]Exchange(nil), p.Exchanges...)
	return &cp
}

// Forget removes everything known about a user.
func (m *Memory) Forget(userID string) (bool, error) {
	m.mu.Lock()
	_, exists := m.People[userID]
	delete(m.People, userID)
	m.mu.Unlock()

	if !exists {
		return false, nil
	}
	return true, m.Save()
}
