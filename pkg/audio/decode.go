package audio

import (
	"fmt"
	"sync"
)

// DecodeRequest asks the worker to decode one base64 PCM16 payload.
type DecodeRequest struct {
	Base64     string
	SampleRate int
	Channels   int
}

// DecodeResult is the worker's reply to a single DecodeRequest.
// Exactly one result is delivered per request.
type DecodeResult struct {
	Buffer *Buffer
	Err    error
}

type decodeJob struct {
	req   DecodeRequest
	reply chan DecodeResult
}

// DecodeWorker decodes PCM payloads on a dedicated goroutine so the
// control loop never blocks on decode work. It communicates purely by
// message passing; sample buffers are never shared between goroutines.
type DecodeWorker struct {
	jobs      chan decodeJob
	done      chan struct{}
	closeOnce sync.Once
}

// NewDecodeWorker starts the worker goroutine.
func NewDecodeWorker() *DecodeWorker {
	w := &DecodeWorker{
		jobs: make(chan decodeJob, 16),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *DecodeWorker) run() {
	for {
		select {
		case <-w.done:
			return
		case job := <-w.jobs:
			buf, err := DecodePCM16(job.req.Base64, job.req.SampleRate, job.req.Channels)
			job.reply <- DecodeResult{Buffer: buf, Err: err}
		}
	}
}

// Decode submits a request and returns the channel its single result
// will arrive on. Requests are processed in submission order, but
// callers must not rely on cross-request ordering; pairing is the only
// guarantee.
func (w *DecodeWorker) Decode(req DecodeRequest) <-chan DecodeResult {
	reply := make(chan DecodeResult, 1)
	select {
	case w.jobs <- decodeJob{req: req, reply: reply}:
	case <-w.done:
		reply <- DecodeResult{Err: fmt.Errorf("decode worker closed")}
	}
	return reply
}

// Close stops the worker. In-flight requests submitted before Close may
// still be answered; later requests fail.
func (w *DecodeWorker) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}
