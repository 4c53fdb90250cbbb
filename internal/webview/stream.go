package webview

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Subscribe registers a watcher that receives every new snapshot. The
// returned function unregisters it and closes the channel.
func (w *Workspace) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 16)
	w.watchersMu.Lock()
	w.watchers[ch] = struct{}{}
	w.watchersMu.Unlock()
	return ch, func() { w.removeWatcher(ch) }
}

func (w *Workspace) removeWatcher(ch chan []byte) {
	w.watchersMu.Lock()
	defer w.watchersMu.Unlock()
	if _, ok := w.watchers[ch]; ok {
		delete(w.watchers, ch)
		close(ch)
	}
}

// send fans data out to watchers, dropping it for watchers whose buffer is
// full.
func (w *Workspace) send(data []byte) {
	if len(data) == 0 {
		return
	}
	w.watchersMu.Lock()
	defer w.watchersMu.Unlock()
	for ch := range w.watchers {
		select {
		case ch <- data:
		default:
		}
	}
}

// ServeStream writes snapshots as Server-Sent Events until the client leaves
// or the watcher is closed.
func (w *Workspace) ServeStream(rw http.ResponseWriter, r *http.Request) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		http.Error(rw, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	ch, cancel := w.Subscribe()
	defer cancel()

	ctx := r.Context()
	fmt.Fprintf(rw, "retry: 5000\n\n")
	flusher.Flush()

	initial, _ := json.Marshal(w.Snapshot())
	fmt.Fprintf(rw, "data: %s\n\n", initial)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(rw, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// Close disconnects every watcher.
func (w *Workspace) Close() {
	w.watchersMu.Lock()
	defer w.watchersMu.Unlock()
	for ch := range w.watchers {
		delete(w.watchers, ch)
		close(ch)
	}
}
