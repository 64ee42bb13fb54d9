package auth

import "sync"

// Account identifies the signed-in user on this device.
type Account struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Event announces a sign-in (Account set) or sign-out (Account nil).
type Event struct {
	Account *Account
}

// Broker fans auth events out to subscribers. Publish never blocks; a
// subscriber that falls behind loses the oldest pending event.
type Broker struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

func NewBroker() *Broker {
	return &Broker{}
}

// Subscribe registers a new listener. The returned channel is closed
// when the broker closes.
func (b *Broker) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 4)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers ev to every subscriber.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Close shuts down all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
