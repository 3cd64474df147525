// Package sse subscribes to the backend's progress stream over Server-Sent
// Events.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/ports"
)

const (
	LastEventIDHeader = "Last-Event-ID"
	maxLineBytes      = 64 << 10
)

// Source opens GET requests against URL. ConnectTimeout bounds the wait for
// response headers only; the stream itself has no deadline.
type Source struct {
	URL            string
	HTTPClient     *http.Client
	ConnectTimeout time.Duration
	SessionID      string
}

var _ ports.ProgressSource = Source{}

type payload struct {
	Message string `json:"message"`
}

func (s Source) Subscribe(ctx context.Context, credential domain.Credential, cursor string) (ports.Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, s.URL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if credential.Token != "" {
		req.Header.Set("Authorization", "Bearer "+credential.Token)
	}
	if s.SessionID != "" {
		req.Header.Set("X-Client-Session", s.SessionID)
	}
	if cursor != "" {
		req.Header.Set(LastEventIDHeader, cursor)
	}

	resp, err := s.connect(req, cancel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: connect %s: %w", domain.ErrChannel, s.URL, err)
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: stream status %d", domain.ErrChannel, resp.StatusCode)
	}
	if mediaType := resp.Header.Get("Content-Type"); !strings.HasPrefix(mediaType, "text/event-stream") {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: unexpected content type %q", domain.ErrChannel, mediaType)
	}

	return newSubscription(resp.Body, cancel, cursor), nil
}

// connect waits at most ConnectTimeout for headers, cancelling the request
// otherwise.
func (s Source) connect(req *http.Request, cancel context.CancelFunc) (*http.Response, error) {
	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	if s.ConnectTimeout <= 0 {
		return client.Do(req)
	}

	timer := time.AfterFunc(s.ConnectTimeout, cancel)
	resp, err := client.Do(req)
	if !timer.Stop() && err == nil {
		_ = resp.Body.Close()
		return nil, errors.New("connect timeout")
	}
	return resp, err
}

type subscription struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	scanner *bufio.Scanner
	lastID  string
}

func newSubscription(body io.ReadCloser, cancel context.CancelFunc, cursor string) *subscription {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 4096), maxLineBytes)
	return &subscription{body: body, cancel: cancel, scanner: scanner, lastID: cursor}
}

// Next reads until the next complete event. Events whose numeric id does not
// advance past the last seen one are skipped, which keeps a server that
// ignores Last-Event-ID from replaying old events.
func (s *subscription) Next(ctx context.Context) (ports.Delivery, error) {
	for {
		id, data, err := s.readEvent()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ports.Delivery{}, ctxErr
			}
			return ports.Delivery{}, err
		}

		if id != "" {
			if !advances(s.lastID, id) {
				continue
			}
			s.lastID = id
		}

		message := data
		var decoded payload
		if err := json.Unmarshal([]byte(data), &decoded); err == nil && decoded.Message != "" {
			message = decoded.Message
		}

		return ports.Delivery{Event: domain.ProgressEvent{Message: message}, Cursor: s.lastID}, nil
	}
}

func (s *subscription) Close() error {
	s.cancel()
	return s.body.Close()
}

// readEvent returns the id and joined data lines of the next event that has
// data. Comments, retry hints and named events other than "message" are
// dropped.
func (s *subscription) readEvent() (string, string, error) {
	var (
		id        string
		event     string
		dataLines []string
	)

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if len(dataLines) > 0 && (event == "" || event == "message") {
				return id, strings.Join(dataLines, "\n"), nil
			}
			id, event, dataLines = "", "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			if !strings.ContainsRune(value, 0) {
				id = value
			}
		case "event":
			event = value
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("%w: read stream: %w", domain.ErrChannel, err)
	}
	return "", "", fmt.Errorf("%w: stream closed by server", domain.ErrChannel)
}

func advances(last, next string) bool {
	lastN, errLast := strconv.ParseUint(last, 10, 64)
	nextN, errNext := strconv.ParseUint(next, 10, 64)
	if errLast != nil || errNext != nil {
		return true
	}
	return nextN > lastN
}
