// Package stream fan-outs ticket activity to dashboard subscribers (the live
// action feed and the city map).
package stream

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"sort"
	"sync"
	"time"
)

// Location is an approximate point on the city map.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// TicketEvent describes one audited mutation for the live feed.
type TicketEvent struct {
	Action     string    `json:"action"`
	TicketID   string    `json:"ticket_id"`
	Department string    `json:"department"`
	Location   Location  `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream delivers events to all active subscribers.
type Stream struct {
	mu     sync.RWMutex
	subs   map[int]chan TicketEvent
	next   int
	depots map[string]Location
}

// Depot coordinates per department key; tickets without their own location
// are plotted at their department's yard.
var defaultDepots = map[string]Location{
	"roads_infrastructure": {Name: "Roads Yard", Lat: 44.9675, Lng: -93.2850},
	"sanitation":           {Name: "Sanitation Depot", Lat: 44.9480, Lng: -93.2410},
	"water_supply":         {Name: "Water Works", Lat: 44.9930, Lng: -93.2600},
	"street_lighting":      {Name: "Lighting Shop", Lat: 44.9560, Lng: -93.3020},
	"parks_recreation":     {Name: "Parks HQ", Lat: 44.9280, Lng: -93.2180},
	"public_transit":       {Name: "Transit Garage", Lat: 44.9770, Lng: -93.2290},
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{
		subs:   make(map[int]chan TicketEvent),
		depots: defaultDepots,
	}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan TicketEvent {
	ch := make(chan TicketEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt TicketEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// LocationFor resolves the map point for a department. Unknown departments
// are mapped deterministically onto one of the known depots so every event
// lands somewhere stable on the map.
func (s *Stream) LocationFor(departmentKey string) Location {
	if loc, ok := s.depots[departmentKey]; ok {
		return loc
	}
	keys := make([]string, 0, len(s.depots))
	for k := range s.depots {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return Location{}
	}
	sort.Strings(keys)
	hash := sha1.Sum([]byte(departmentKey))
	val := binary.BigEndian.Uint32(hash[:4])
	return s.depots[keys[int(val%uint32(len(keys)))]]
}
