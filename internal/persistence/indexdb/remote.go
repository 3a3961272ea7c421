package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/wfc/tiles"
)

// HTTPConfig points an HTTPIndex at a remote ingest endpoint that accepts
// POST {"events":[...]} batches.
type HTTPConfig struct {
	Endpoint      string
	Token         string
	Source        string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

// HTTPIndex ships run records to a remote index. A batch that fails to send
// is kept and retried on the next flush; new records are dropped while the
// queue is full.
type HTTPIndex struct {
	cfg        HTTPConfig
	httpClient *http.Client

	ch   chan httpEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropped   atomic.Uint64
	flushFail atomic.Uint64
	sent      atomic.Uint64
}

type httpEvent struct {
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Payload any    `json:"payload"`
}

type corpusPayload struct {
	Digest   string   `json:"digest"`
	Dir      string   `json:"dir"`
	Span     int      `json:"span"`
	Tiles    int      `json:"tiles"`
	Examples int      `json:"examples"`
	Palette  []string `json:"palette"`
}

type HTTPStats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	QueueDroppedTotal uint64 `json:"queue_dropped_total"`
	FlushFailTotal    uint64 `json:"flush_fail_total"`
	SentTotal         uint64 `json:"sent_total"`
}

func OpenHTTP(cfg HTTPConfig) (*HTTPIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Source = strings.TrimSpace(cfg.Source)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty index ingest endpoint")
	}
	if cfg.Source == "" {
		cfg.Source = "wfc"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &HTTPIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan httpEvent, 8192),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

// Close flushes what is queued, making one last delivery attempt.
func (d *HTTPIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *HTTPIndex) RecordAttempt(r generate.AttemptRecord) {
	d.enqueue(httpEvent{Kind: "attempt", Source: d.cfg.Source, Payload: r})
}

func (d *HTTPIndex) RecordRun(r generate.RunRecord) {
	d.enqueue(httpEvent{Kind: "run", Source: d.cfg.Source, Payload: r})
}

func (d *HTTPIndex) UpsertCorpus(dir string, m *tiles.Model) error {
	d.enqueue(httpEvent{Kind: "corpus", Source: d.cfg.Source, Payload: corpusPayload{
		Digest:   m.Digest(),
		Dir:      dir,
		Span:     m.Span(),
		Tiles:    m.Len(),
		Examples: m.Examples(),
		Palette:  m.Palette(),
	}})
	return nil
}

func (d *HTTPIndex) Stats() HTTPStats {
	if d == nil {
		return HTTPStats{}
	}
	return HTTPStats{
		QueueDepth:        len(d.ch),
		QueueCapacity:     cap(d.ch),
		QueueDroppedTotal: d.dropped.Load(),
		FlushFailTotal:    d.flushFail.Load(),
		SentTotal:         d.sent.Load(),
	}
}

func (d *HTTPIndex) enqueue(ev httpEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
		d.printf("index queue full; drop kind=%s", ev.Kind)
	}
}

func (d *HTTPIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]httpEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("index flush failed batch=%d err=%v", len(batch), err)
			if len(batch) >= 8*d.cfg.BatchSize {
				d.dropped.Add(uint64(len(batch)))
				batch = batch[:0]
			}
			return
		}
		d.sent.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *HTTPIndex) sendBatch(events []httpEvent) error {
	body := struct {
		Events []httpEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-wfc-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *HTTPIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
