// Package reading holds the latest published distance reading. There is one
// writer (the sensor loop) and any number of readers; readers always see a
// complete Reading and never block the writer.
package reading

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/parking.assist/internal/proximity"
	"github.com/banshee-data/parking.assist/internal/sensor"
)

// subscriberBuffer is the channel depth handed to each subscriber. A
// subscriber that falls further behind misses readings.
const subscriberBuffer = 16

// Reading is one published measurement. Band is always the classification
// of Distance at the time it was published.
type Reading struct {
	Distance  sensor.Distance `json:"distance"`
	Band      proximity.Band  `json:"band"`
	Timestamp time.Time       `json:"timestamp"`
}

// NoData is the reading held before the first valid measurement.
func NoData() Reading {
	return Reading{Distance: sensor.InvalidDistance, Band: proximity.Invalid}
}

// HasData reports whether r came from a measurement.
func (r Reading) HasData() bool {
	return r.Distance.Valid()
}

// Store is a single-slot holder for the latest Reading.
type Store struct {
	latest atomic.Pointer[Reading]

	subscriberMu sync.Mutex
	subscribers  map[string]chan Reading
}

// NewStore returns a Store holding NoData.
func NewStore() *Store {
	s := &Store{subscribers: make(map[string]chan Reading)}
	initial := NoData()
	s.latest.Store(&initial)
	return s
}

// Publish replaces the latest reading and offers it to every subscriber.
func (s *Store) Publish(r Reading) {
	s.latest.Store(&r)

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- r:
		default:
		}
	}
}

// Latest returns the most recently published reading.
func (s *Store) Latest() Reading {
	return *s.latest.Load()
}

// Subscribe returns a channel that receives every reading published from
// now on, until Unsubscribe is called with id.
func (s *Store) Subscribe() (string, <-chan Reading) {
	id := uuid.NewString()
	ch := make(chan Reading, subscriberBuffer)

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and forgets the subscriber channel for id.
func (s *Store) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Subscribers returns the number of live subscribers.
func (s *Store) Subscribers() int {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	return len(s.subscribers)
}
