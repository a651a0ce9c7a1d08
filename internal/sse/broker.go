// Package sse streams task file changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types sent to clients.
const (
	TypeFileCreated  = "file.created"
	TypeFileUpdated  = "file.updated"
	TypeFileDeleted  = "file.deleted"
	TypeTasksUpdated = "tasks.updated"
)

const keepAliveInterval = 25 * time.Second

// Event is one message on the stream. An empty ID is filled in with a random
// UUID. Path scopes the event to a task file; subscribers filtering on
// another file do not receive it.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Path string `json:"-"`
	Data any    `json:"data"`
}

// TasksUpdated is the payload of a tasks.updated event: every file changed
// since the previous one.
type TasksUpdated struct {
	Paths []string `json:"paths"`
}

type subscription struct {
	ch   chan []byte
	path string // "" receives everything
}

type fileEvent struct {
	kind string
	path string
}

// Broker fans events out to SSE clients.
//
// A single loop goroutine owns the client set and the tasks.updated batch;
// public methods talk to it over channels. File events are forwarded at
// once. tasks.updated is sent at most once per throttle interval, and a
// burst that arrives inside the interval is flushed when it ends.
type Broker struct {
	throttle time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	fileEventCh   chan fileEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. A non-positive throttle defaults to two seconds.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	b := &Broker{
		throttle:      throttle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		fileEventCh:   make(chan fileEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

// encode renders e in the text/event-stream wire format.
func encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, payload)), nil
}

func fileEventType(kind string) string {
	switch kind {
	case "created":
		return TypeFileCreated
	case "updated":
		return TypeFileUpdated
	case "deleted":
		return TypeFileDeleted
	}
	return ""
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	pending := make(map[string]struct{})
	var lastTasks time.Time

	flush := time.NewTimer(b.throttle)
	flush.Stop()
	armed := false
	defer flush.Stop()

	// send delivers e to every client whose filter is empty or in paths.
	// nil paths reach everyone.
	send := func(e Event, paths []string) {
		raw, err := encode(e)
		if err != nil {
			return
		}
		for ch, filter := range clients {
			if filter != "" && paths != nil && !slices.Contains(paths, filter) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	emitTasks := func() {
		paths := slices.Sorted(maps.Keys(pending))
		clear(pending)
		lastTasks = time.Now()
		send(Event{Type: TypeTasksUpdated, Data: TasksUpdated{Paths: paths}}, paths)
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.path

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case e := <-b.publishCh:
			var paths []string
			if e.Path != "" {
				paths = []string{e.Path}
			}
			send(e, paths)

		case fe := <-b.fileEventCh:
			typ := fileEventType(fe.kind)
			if typ == "" {
				continue
			}
			send(Event{Type: typ, Path: fe.path, Data: map[string]string{"path": fe.path}}, []string{fe.path})

			pending[fe.path] = struct{}{}
			if wait := b.throttle - time.Since(lastTasks); wait <= 0 {
				emitTasks()
			} else if !armed {
				flush.Reset(wait)
				armed = true
			}

		case <-flush.C:
			armed = false
			if len(pending) > 0 {
				emitTasks()
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that receives every event.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribePath("")
}

// SubscribePath adds a client that only receives events for the task file
// at path. An empty path receives everything.
func (b *Broker) SubscribePath(path string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscription{ch: ch, path: path}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all matching clients.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- e:
	case <-b.stopped:
	}
}

// PublishFileEvent announces a task file change. kind is "created",
// "updated" or "deleted"; anything else is ignored. Its signature matches
// index.EventCallback.
func (b *Broker) PublishFileEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.fileEventCh <- fileEvent{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events). The optional
// path query parameter limits the stream to a single task file.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribePath(r.URL.Query().Get("path"))
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAliveInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
