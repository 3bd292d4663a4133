package serve

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	routeBufferSize = 4096
	maxLineLength   = 65536
	dialTimeout     = 15 * time.Second
	silenceTimeout  = 15 * time.Second
)

var (
	inputLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "input",
		Name:      "lines_total",
	}, []string{"source", "class"})
	routedLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "router",
		Name:      "lines_total",
	}, []string{"route", "result"})
)

// lineClass sorts raw input lines; only classSentence lines are passed on.
type lineClass int

const (
	classSentence lineClass = iota
	classEmpty
	classNonNMEA
	classNoChecksum
	classBadChecksum
)

var lineClasses = []lineClass{classSentence, classEmpty, classNonNMEA, classNoChecksum, classBadChecksum}

func (c lineClass) String() string {
	switch c {
	case classSentence:
		return "sentence"
	case classEmpty:
		return "empty"
	case classNonNMEA:
		return "non_nmea"
	case classNoChecksum:
		return "no_checksum"
	case classBadChecksum:
		return "bad_checksum"
	default:
		return "unknown"
	}
}

// classifyLine trims a raw line and checks that it is a checksummed
// NMEA or AIS sentence.
func classifyLine(raw string) (string, lineClass) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return line, classEmpty
	}
	if line[0] != '$' && line[0] != '!' {
		return line, classNonNMEA
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return line, classNoChecksum
	}
	if !strings.EqualFold(nmea.Checksum(line[1:star]), line[star+1:]) {
		return line, classBadChecksum
	}
	return line, classSentence
}

// sentenceReader is a supervised input. Each Serve opens the source
// afresh and forwards valid sentences until the stream ends, goes silent
// for longer than silence, or the context is cancelled.
type sentenceReader struct {
	name    string
	open    func(ctx context.Context) (io.ReadCloser, error)
	silence time.Duration
	out     chan<- string
}

func tcpSentences(addr string, out chan<- string) *sentenceReader {
	return &sentenceReader{
		name: "tcp/" + addr,
		open: func(ctx context.Context) (io.ReadCloser, error) {
			d := net.Dialer{Timeout: dialTimeout}
			return d.DialContext(ctx, "tcp", addr)
		},
		silence: silenceTimeout,
		out:     out,
	}
}

func udpSentences(port int, out chan<- string) *sentenceReader {
	return &sentenceReader{
		name: fmt.Sprintf("udp/%d", port),
		open: func(context.Context) (io.ReadCloser, error) {
			return net.ListenUDP("udp", &net.UDPAddr{Port: port})
		},
		silence: silenceTimeout,
		out:     out,
	}
}

func serialSentences(dev string, out chan<- string) *sentenceReader {
	return &sentenceReader{
		name: dev,
		open: func(context.Context) (io.ReadCloser, error) { return os.Open(dev) },
		out:  out,
	}
}

func streamSentences(name string, r io.ReadCloser, out chan<- string) *sentenceReader {
	return &sentenceReader{
		name: name,
		open: func(context.Context) (io.ReadCloser, error) { return r, nil },
		out:  out,
	}
}

func (r *sentenceReader) String() string {
	return fmt.Sprintf("sentence-reader(%s)@%p", r.name, r)
}

func (r *sentenceReader) Serve(ctx context.Context) error {
	src, err := r.open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	defer src.Close()

	counters := make(map[lineClass]prometheus.Counter, len(lineClasses))
	for _, c := range lineClasses {
		counters[c] = inputLines.WithLabelValues(r.name, c.String())
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, maxLineLength), maxLineLength)
	for r.extendDeadline(src); sc.Scan(); r.extendDeadline(src) {
		line, class := classifyLine(sc.Text())
		counters[class].Inc()
		if class != classSentence {
			continue
		}
		select {
		case r.out <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	return io.EOF
}

// extendDeadline pushes the read deadline forward on sources that have
// one, so a silent peer surfaces as a read error and a restart.
func (r *sentenceReader) extendDeadline(src io.Reader) {
	if r.silence <= 0 {
		return
	}
	if d, ok := src.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = d.SetReadDeadline(time.Now().Add(r.silence))
	}
}

func isInstrumentSentence(line string) bool { return strings.HasPrefix(line, "$") }
func isAISSentence(line string) bool        { return strings.HasPrefix(line, "!") }

type route struct {
	name    string
	match   func(string) bool
	out     chan string
	sent    prometheus.Counter
	dropped prometheus.Counter
}

// router delivers each input sentence to every route that matches it. A
// route whose consumer falls behind loses sentences instead of holding
// up the others.
type router struct {
	input <-chan string

	mut    sync.Mutex
	routes []*route
}

func newRouter(input <-chan string) *router {
	return &router{input: input}
}

func (rt *router) String() string {
	return fmt.Sprintf("sentence-router@%p", rt)
}

// Route registers a named consumer for sentences accepted by match.
func (rt *router) Route(name string, match func(string) bool) <-chan string {
	r := &route{
		name:    name,
		match:   match,
		out:     make(chan string, routeBufferSize),
		sent:    routedLines.WithLabelValues(name, "sent"),
		dropped: routedLines.WithLabelValues(name, "dropped"),
	}
	rt.mut.Lock()
	rt.routes = append(rt.routes, r)
	rt.mut.Unlock()
	return r.out
}

func (rt *router) Serve(ctx context.Context) error {
	for {
		select {
		case line := <-rt.input:
			rt.mut.Lock()
			for _, r := range rt.routes {
				if !r.match(line) {
					continue
				}
				select {
				case r.out <- line:
					r.sent.Inc()
				default:
					r.dropped.Inc()
				}
			}
			rt.mut.Unlock()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
