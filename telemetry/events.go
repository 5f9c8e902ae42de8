package telemetry

import (
	"time"

	"github.com/NV7150/ImOTAR-sub000/depth"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

// Envelope is the wire frame for every hub message. Type tells the
// subscriber how to decode Data.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Envelope types.
const (
	MessageEvent = "event"
	MessageStats = "stats"
)

// StatsMessage is the periodic pipeline snapshot broadcast alongside
// lifecycle events.
type StatsMessage struct {
	At        time.Time            `json:"at"`
	Processor depth.ProcessorStats `json:"processor"`
	Sync      stream.SyncStats     `json:"sync"`
	System    SystemSnapshot       `json:"system"`
	Clients   int                  `json:"clients"`
	Drops     int64                `json:"drops"`
}

// Sink forwards scheduler lifecycle events to hub subscribers. It
// implements depth.EventSink; publishing never blocks, so it is safe
// on the tick path.
type Sink struct {
	hub *Hub
}

// NewSink wraps a hub as an event sink.
func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

// OnEvent implements depth.EventSink.
func (s *Sink) OnEvent(ev depth.Event) {
	s.hub.Publish(Envelope{Type: MessageEvent, Data: ev})
}

// PublishStats broadcasts one pipeline snapshot.
func (h *Hub) PublishStats(proc depth.ProcessorStats, sync stream.SyncStats) {
	h.Publish(Envelope{Type: MessageStats, Data: StatsMessage{
		At:        time.Now(),
		Processor: proc,
		Sync:      sync,
		System:    CaptureSystem(),
		Clients:   h.ClientCount(),
		Drops:     h.Drops(),
	}})
}
