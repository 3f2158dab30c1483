package account

import (
	"sync"
	"time"

	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/gamification"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

type EventType string

const (
	EventExpenseRecorded     EventType = "expense_recorded"
	EventExpenseEdited       EventType = "expense_edited"
	EventExpenseRemoved      EventType = "expense_removed"
	EventSkipRewarded        EventType = "skip_rewarded"
	EventScoreChanged        EventType = "score_changed"
	EventLevelUp             EventType = "level_up"
	EventWithdrawalRequested EventType = "withdrawal_requested"
	EventWithdrawalApproved  EventType = "withdrawal_approved"
	EventWithdrawalResolved  EventType = "withdrawal_resolved"
	EventOfferRedeemed       EventType = "offer_redeemed"
)

// Event is published after the change it describes has been committed.
// Only the fields relevant to the type are set.
type Event struct {
	Type       EventType
	AccountID  string
	At         time.Time
	Score      int
	Points     int64
	LevelUp    *gamification.LevelUp
	Expense    *expense.Record
	Withdrawal *ewa.Request
	Redemption *merchant.Redemption
}

// Bus fans events out to subscribers. A subscriber that falls behind loses
// events rather than blocking the publisher.
type Bus struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{clients: make(map[chan Event]struct{})}
}

// Subscribe registers a listener with the given buffer size. The returned
// function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Publish(events ...Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ev := range events {
		for ch := range b.clients {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
