package relay

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/tessro/paira/internal/logging"
)

// readBufferSize is the bufio buffer used for each stream.
const readBufferSize = 64 * 1024

// Relay reads output streams concurrently and funnels their lines into a
// single channel.
//
// Each stream gets its own goroutine, so lines from one stream keep the order
// the process wrote them in. Lines from different streams are not ordered
// relative to each other.
//
// Lines that are not valid UTF-8 are dropped and counted. There is no way to
// stop a reader early: it runs until its stream returns EOF or an error,
// which in practice means until the process exits or is killed.
type Relay struct {
	dropped atomic.Int64
	lines   atomic.Int64
}

// New creates a Relay.
func New() *Relay {
	return &Relay{}
}

// Start begins reading stdout and stderr and returns the channel their lines
// are delivered on. Either reader may be nil. The channel is closed once
// every reader has finished.
func (r *Relay) Start(stdout, stderr io.Reader) <-chan Line {
	out := make(chan Line, 64)

	var wg sync.WaitGroup
	for _, s := range []struct {
		rd  io.Reader
		src Source
	}{
		{stdout, Stdout},
		{stderr, Stderr},
	} {
		if s.rd == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer logging.LogPanic("relay-"+string(s.src), nil)
			r.read(s.rd, s.src, out)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// Dropped returns the number of lines discarded because they were not valid
// UTF-8.
func (r *Relay) Dropped() int64 {
	return r.dropped.Load()
}

// Lines returns the number of lines delivered.
func (r *Relay) Lines() int64 {
	return r.lines.Load()
}

// read delivers every line of rd to out until rd is exhausted.
func (r *Relay) read(rd io.Reader, src Source, out chan<- Line) {
	log := slog.With("component", "relay", "source", src)
	br := bufio.NewReaderSize(rd, readBufferSize)

	for {
		raw, err := br.ReadBytes('\n')
		if len(raw) > 0 {
			r.deliver(raw, src, out)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// A closed pipe after kill is the normal way for a reader to end.
				log.Debug("stream closed", "error", err)
			}
			return
		}
	}
}

func (r *Relay) deliver(raw []byte, src Source, out chan<- Line) {
	raw = bytes.TrimSuffix(raw, []byte{'\n'})
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	if !utf8.Valid(raw) {
		r.dropped.Add(1)
		return
	}
	r.lines.Add(1)
	out <- Line{Source: src, Text: string(raw)}
}
