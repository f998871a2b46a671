// Package graphio reads an edge list and scatters it across ranks by
// owner_edge(eid, P), mirroring the parse/hash-partition/scatter pipeline
// the algorithm's outer driver depends on. It never interprets the graph
// itself; its only job is to turn lines of text into RawEdge values and
// get each one to the rank that owns it.
package graphio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/sublinear-mpc/matching/pkg/errors"
)

// RawEdge is one parsed (u, v) pair, before any hashing or ownership is
// applied.
type RawEdge struct {
	U, V int64
}

// EdgeSource produces a stream of RawEdge values. Open returns a channel
// that the caller drains to exhaustion; the channel is closed once the
// source is consumed or ctx is cancelled. Malformed lines never appear on
// the channel — they are skipped, matching the input format's "lines
// starting with # or blank are skipped" rule; a line with the wrong token
// count or non-integer fields is treated as malformed the same way.
type EdgeSource interface {
	Open(ctx context.Context) (<-chan RawEdge, error)
	Close() error
}

// parseLine splits one input line into a RawEdge, reporting ok=false for
// blank lines, comment lines, and anything that isn't exactly two
// whitespace-separated integers.
func parseLine(line string) (RawEdge, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return RawEdge{}, false
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return RawEdge{}, false
	}
	u, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return RawEdge{}, false
	}
	v, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return RawEdge{}, false
	}
	return RawEdge{U: u, V: v}, true
}

// scan reads every line of r, emitting parsed edges on out. It closes out
// when r is exhausted, ctx is cancelled, or a read error other than EOF
// occurs; a non-EOF read error is reported back on errCh.
func scan(ctx context.Context, r io.Reader, out chan<- RawEdge, errCh chan<- error) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	// Graph inputs can have very long adjacency-style lines in principle;
	// this format is strictly "u v" but a generous buffer costs nothing.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		edge, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		select {
		case out <- edge:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case errCh <- errors.Wrap(errors.CodeIOError, "reading edge list", err):
		default:
		}
	}
}

// FileEdgeSource reads a local edge-list file.
type FileEdgeSource struct {
	Path string

	file *os.File
}

// NewFileEdgeSource opens path lazily; the file is actually opened on
// Open, not here, so construction never fails.
func NewFileEdgeSource(path string) *FileEdgeSource {
	return &FileEdgeSource{Path: path}
}

func (s *FileEdgeSource) Open(ctx context.Context) (<-chan RawEdge, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIOError, fmt.Sprintf("opening edge list %q", s.Path), err)
	}
	s.file = f

	out := make(chan RawEdge, 256)
	errCh := make(chan error, 1)
	go scan(ctx, f, out, errCh)
	return out, nil
}

// Close releases the underlying file handle.
func (s *FileEdgeSource) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// HTTPEdgeSource fetches the same line format from a URL, for pulling a
// generated graph from a service without staging it to disk.
type HTTPEdgeSource struct {
	URL    string
	Client *http.Client

	body io.ReadCloser
}

// NewHTTPEdgeSource builds a source against the default http.Client.
func NewHTTPEdgeSource(url string) *HTTPEdgeSource {
	return &HTTPEdgeSource{URL: url, Client: http.DefaultClient}
}

func (s *HTTPEdgeSource) Open(ctx context.Context) (<-chan RawEdge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIOError, fmt.Sprintf("building request for %q", s.URL), err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIOError, fmt.Sprintf("fetching edge list from %q", s.URL), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Wrap(errors.CodeIOError, fmt.Sprintf("fetching edge list from %q", s.URL), fmt.Errorf("unexpected status %s", resp.Status))
	}
	s.body = resp.Body

	out := make(chan RawEdge, 256)
	errCh := make(chan error, 1)
	go scan(ctx, resp.Body, out, errCh)
	return out, nil
}

func (s *HTTPEdgeSource) Close() error {
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}
