// Package transcript holds the ordered, append-only record of a session run.
package transcript

import (
	"sync"

	"github.com/aretw0/flowrun/pkg/domain"
)

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 64

// Log is an append-only list of messages with fan-out to subscribers.
// It is safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	messages []domain.Message
	subs     map[int]chan domain.Message
	nextSub  int
}

// New creates an empty log.
func New() *Log {
	return &Log{
		subs: make(map[int]chan domain.Message),
	}
}

// Append adds messages in order and notifies subscribers.
// A subscriber whose buffer is full misses the message; it can catch up with Since.
func (l *Log) Append(msgs ...domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range msgs {
		l.messages = append(l.messages, m)
		for _, ch := range l.subs {
			select {
			case ch <- m:
			default:
			}
		}
	}
}

// Messages returns a copy of the transcript.
func (l *Log) Messages() []domain.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Since returns the messages appended after the first n.
func (l *Log) Since(n int) []domain.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(l.messages) {
		return nil
	}
	out := make([]domain.Message, len(l.messages)-n)
	copy(out, l.messages[n:])
	return out
}

// Subscribe returns a channel receiving every message appended from now on,
// and a function that detaches the subscriber and closes the channel.
func (l *Log) Subscribe() (<-chan domain.Message, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan domain.Message, subscriberBuffer)
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
			close(ch)
		})
	}
}

// Reset discards the transcript. It is reserved for tearing a session down;
// subscribers stay attached.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}
