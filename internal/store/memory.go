package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"match-ticketing/models"
)

// Memory is a mutex-guarded in-memory Store. It enforces the same unique
// constraints as the sqlite implementation and backs tests and dev mode.
type Memory struct {
	mu       sync.RWMutex
	tickets  map[string]*models.Ticket
	matches  map[string]*models.Match
	payments map[string]*models.Payment
	serials  map[string]string
	tokens   map[string]string
	refs     map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		tickets:  make(map[string]*models.Ticket),
		matches:  make(map[string]*models.Match),
		payments: make(map[string]*models.Payment),
		serials:  make(map[string]string),
		tokens:   make(map[string]string),
		refs:     make(map[string]string),
	}
}

func (m *Memory) InsertTicket(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[t.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.serials[t.Serial]; ok {
		return ErrDuplicate
	}
	if _, ok := m.tokens[t.Token]; ok {
		return ErrDuplicate
	}
	cp := *t
	m.tickets[t.ID] = &cp
	m.serials[t.Serial] = t.ID
	m.tokens[t.Token] = t.ID
	return nil
}

func (m *Memory) GetTicket(_ context.Context, id string) (*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) ListUserTickets(_ context.Context, userID string) ([]*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ticket
	for _, t := range m.tickets {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortTickets(out)
	return out, nil
}

func (m *Memory) ListMatchTickets(_ context.Context, matchID string) ([]*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ticket
	for _, t := range m.tickets {
		if t.MatchID == matchID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortTickets(out)
	return out, nil
}

func (m *Memory) CountIssued(_ context.Context, matchID string, types []models.TicketType) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, t := range m.tickets {
		if t.MatchID != matchID || !t.Status.Counted() {
			continue
		}
		for _, typ := range types {
			if t.Type == typ {
				count++
				break
			}
		}
	}
	return count, nil
}

func (m *Memory) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != models.TicketValid {
		return false, nil
	}
	t.Status = models.TicketUsed
	t.UsedAt = &at
	return true, nil
}

func (m *Memory) MarkCancelled(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != models.TicketValid {
		return false, nil
	}
	t.Status = models.TicketCancelled
	t.CancelledAt = &at
	return true, nil
}

func (m *Memory) ExpireMatchTickets(_ context.Context, matchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := 0
	for _, t := range m.tickets {
		if t.MatchID == matchID && t.Expire() {
			expired++
		}
	}
	return expired, nil
}

func (m *Memory) InsertMatch(_ context.Context, match *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[match.ID]; ok {
		return ErrDuplicate
	}
	cp := *match
	m.matches[match.ID] = &cp
	return nil
}

func (m *Memory) GetMatch(_ context.Context, id string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *match
	return &cp, nil
}

func (m *Memory) ListMatches(_ context.Context) ([]*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Match, 0, len(m.matches))
	for _, match := range m.matches {
		cp := *match
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KickoffAt.Before(out[j].KickoffAt) })
	return out, nil
}

func (m *Memory) ListConcluded(_ context.Context, kickoffBefore time.Time) ([]*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Match
	for _, match := range m.matches {
		// A postponed match keeps its tickets live until it is rescheduled
		// or cancelled, however stale the original kickoff is.
		concluded := match.Status == models.MatchFinished || match.Status == models.MatchCancelled ||
			(match.Status != models.MatchPostponed && match.KickoffAt.Before(kickoffBefore))
		if concluded {
			cp := *match
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) InsertPayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.refs[p.Reference]; ok {
		return ErrDuplicate
	}
	cp := *p
	m.payments[p.ID] = &cp
	m.refs[p.Reference] = p.ID
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) UpdatePayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

// SetMatchStatus flips a match status in place. Test helper for exercising
// cancelled and finished paths.
func (m *Memory) SetMatchStatus(id string, s models.MatchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match, ok := m.matches[id]; ok {
		match.Status = s
	}
}

func sortTickets(ts []*models.Ticket) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].CreatedAt.After(ts[j].CreatedAt) })
}
