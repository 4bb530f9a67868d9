package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "sync"
    "sync/atomic"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
)

const (
    axiomBuffer    = 1000
    axiomBatchSize = 200
)

// ingester is the part of *axiom.Client the shipper needs.
type ingester interface {
    IngestEvents(ctx context.Context, id string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

func newAxiomClient(token, orgID string) (*axiom.Client, error) {
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" {
        opts = append(opts, axiom.SetOrganizationID(orgID))
    }
    return axiom.NewClient(opts...)
}

// axiomWriter forwards zerolog JSON lines to Axiom, skipping debug events.
type axiomWriter struct{ ship *axiomShipper }

func (w *axiomWriter) Write(p []byte) (int, error) {
    var ev map[string]interface{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = map[string]interface{}{"message": string(p), "level": "info"}
    }
    if lvl, ok := ev["level"].(string); ok && (lvl == "debug" || lvl == "trace") {
        return len(p), nil
    }
    ev["service"] = serviceName
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    w.ship.Send(axiom.Event(ev))
    return len(p), nil
}

// axiomShipper batches events in the background. Send never blocks; events
// beyond the buffer are dropped and counted.
type axiomShipper struct {
    client  ingester
    dataset string
    ch      chan axiom.Event
    done    chan struct{}
    wg      sync.WaitGroup
    once    sync.Once
    dropped atomic.Int64
}

func newAxiomShipper(client ingester, dataset string, flushEvery time.Duration) *axiomShipper {
    if dataset == "" {
        dataset = "dev_" + serviceName
    }
    if flushEvery <= 0 {
        flushEvery = 10 * time.Second
    }
    s := &axiomShipper{
        client:  client,
        dataset: dataset,
        ch:      make(chan axiom.Event, axiomBuffer),
        done:    make(chan struct{}),
    }
    s.wg.Add(1)
    go s.loop(flushEvery)
    return s
}

func (s *axiomShipper) Send(ev axiom.Event) {
    select {
    case s.ch <- ev:
    default:
        s.dropped.Add(1)
    }
}

func (s *axiomShipper) loop(flushEvery time.Duration) {
    defer s.wg.Done()
    ticker := time.NewTicker(flushEvery)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, axiomBatchSize)
    flush := func() {
        if len(batch) == 0 {
            return
        }
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        if _, err := s.client.IngestEvents(ctx, s.dataset, batch); err != nil {
            // the global logger may be the thing failing; report on stderr only
            fmt.Fprintf(os.Stderr, "axiom ingest of %d events failed: %v\n", len(batch), err)
        }
        cancel()
        batch = batch[:0]
    }
    for {
        select {
        case <-s.done:
            // drain whatever is still buffered
            for {
                select {
                case ev := <-s.ch:
                    batch = append(batch, ev)
                    if len(batch) >= axiomBatchSize {
                        flush()
                    }
                default:
                    flush()
                    return
                }
            }
        case <-ticker.C:
            flush()
        case ev := <-s.ch:
            batch = append(batch, ev)
            if len(batch) >= axiomBatchSize {
                flush()
            }
        }
    }
}

// Close flushes buffered events and stops the background loop.
func (s *axiomShipper) Close() {
    s.once.Do(func() {
        close(s.done)
        s.wg.Wait()
        if n := s.dropped.Load(); n > 0 {
            fmt.Fprintf(os.Stderr, "axiom: dropped %d log events\n", n)
        }
    })
}
