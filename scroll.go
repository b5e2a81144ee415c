package esdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/esdex/internal/metrics"
)

const defaultScrollKeepAlive = time.Minute

type scrollPhase int

const (
	scrollNotStarted scrollPhase = iota
	scrollActive
	scrollExhausted
)

// Scroll is a stateful cursor over a criteria's full result set. The first
// fetch opens a server-side cursor with the rendered query; subsequent
// fetches resend only the token. A cursor is single-use, forward-only and
// not safe for concurrent use; starting over requires a fresh Scroll.
type Scroll struct {
	idx       *Index
	criteria  *Criteria
	batchSize int
	keepAlive time.Duration

	phase scrollPhase
	token string
}

// Token returns the current cursor token. It changes on every successful
// fetch and is empty before the first one and after release.
func (s *Scroll) Token() string { return s.token }

// keepAliveParam renders the cursor keepalive in whole seconds.
func (s *Scroll) keepAliveParam() string {
	return fmt.Sprintf("%ds", int(s.keepAlive.Seconds()))
}

// Next fetches the next batch. ok is false once the cursor is exhausted;
// the server-side cursor is released on exhaustion and on any error, so the
// caller only needs Clear when abandoning iteration early.
func (s *Scroll) Next(ctx context.Context) (res *Result, ok bool, err error) {
	switch s.phase {
	case scrollExhausted:
		return nil, false, nil
	case scrollNotStarted:
		res, err = s.open(ctx)
	default:
		res, err = s.advance(ctx)
	}
	if err != nil {
		s.release(ctx)
		return nil, false, err
	}

	s.phase = scrollActive
	s.token = res.ScrollID()
	metrics.ScrollBatchesTotal.Inc()

	if len(res.Hits()) == 0 {
		s.release(ctx)
		return nil, false, nil
	}
	return res, true, nil
}

func (s *Scroll) open(ctx context.Context) (*Result, error) {
	body, err := s.criteria.scrollBody(s.batchSize, s.idx.client.compat)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/%s/_search?scroll=%s", s.idx.name, s.keepAliveParam())
	raw, err := s.idx.client.conn.Request(ctx, "POST", path, body)
	if err != nil {
		return nil, err
	}
	return newResult(raw)
}

func (s *Scroll) advance(ctx context.Context) (*Result, error) {
	body := map[string]any{
		"scroll":    s.keepAliveParam(),
		"scroll_id": s.token,
	}
	raw, err := s.idx.client.conn.Request(ctx, "POST", "/_search/scroll", body)
	if err != nil {
		return nil, err
	}
	return newResult(raw)
}

// Clear releases the server-side cursor. Safe to call more than once.
func (s *Scroll) Clear(ctx context.Context) error {
	if s.phase == scrollExhausted || s.token == "" {
		s.phase = scrollExhausted
		return nil
	}
	token := s.token
	s.phase = scrollExhausted
	s.token = ""
	body := map[string]any{"scroll_id": []string{token}}
	if _, err := s.idx.client.conn.Request(ctx, "DELETE", "/_search/scroll", body); err != nil {
		return fmt.Errorf("clear scroll: %w", err)
	}
	return nil
}

// release is the internal best-effort variant of Clear used on exhaustion
// and mid-iteration errors.
func (s *Scroll) release(ctx context.Context) {
	if err := s.Clear(ctx); err != nil {
		s.idx.client.log.Warn("scroll cursor release failed")
	}
}

// Scroll creates a cursor over the criteria's result set, fetching
// batchSize hits per call. The keepalive comes from the criteria's scroll
// mode when set, one minute otherwise.
func (idx *Index) Scroll(c *Criteria, batchSize int) *Scroll {
	keepAlive := defaultScrollKeepAlive
	if c != nil && c.scroll != nil && c.scroll.keepAlive > 0 {
		keepAlive = c.scroll.keepAlive
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if c == nil {
		c = NewCriteria()
	}
	return &Scroll{idx: idx, criteria: c, batchSize: batchSize, keepAlive: keepAlive}
}

// EachBatch scrolls the full result set, invoking fn once per non-empty
// batch. The cursor is released on normal exhaustion, on error, and when fn
// aborts iteration by returning an error.
func (idx *Index) EachBatch(ctx context.Context, c *Criteria, batchSize int, fn func(*Result) error) error {
	s := idx.Scroll(c, batchSize)
	defer s.release(ctx)
	for {
		res, ok, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(res); err != nil {
			return err
		}
	}
}

// EachHit scrolls the full result set one hit at a time.
func (idx *Index) EachHit(ctx context.Context, c *Criteria, batchSize int, fn func(Hit) error) error {
	return idx.EachBatch(ctx, c, batchSize, func(res *Result) error {
		for _, hit := range res.Hits() {
			if err := fn(hit); err != nil {
				return err
			}
		}
		return nil
	})
}
