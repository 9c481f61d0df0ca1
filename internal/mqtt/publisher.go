package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

const publishQueueSize = 64

// ScanEvent is published for every new record.
type ScanEvent struct {
	Label     string         `json:"label"`
	Timestamp time.Time      `json:"timestamp"`
	Succeeded bool           `json:"succeeded"`
	Payload   *scan.Snapshot `json:"payload,omitempty"`
}

// ResyncEvent is published after a batch resync.
type ResyncEvent struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

type message struct {
	topic   string
	payload []byte
}

// Publisher forwards record store changes to <topic>/scans and <topic>/resync.
type Publisher struct {
	client Client
	topic  string
	queue  chan message
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	log    logger.Logger
}

// NewPublisher starts the publishing worker. Call Close to stop it.
func NewPublisher(c Client, topic string) *Publisher {
	p := &Publisher{
		client: c,
		topic:  topic,
		queue:  make(chan message, publishQueueSize),
		done:   make(chan struct{}),
		log:    GetLogger(),
	}
	p.wg.Go(p.run)
	return p
}

// Attach subscribes p to store changes.
func (p *Publisher) Attach(store *records.Store) {
	store.Subscribe(p.HandleChange)
}

// HandleChange enqueues the event for ch. A full queue drops the event.
func (p *Publisher) HandleChange(ch records.Change) {
	var (
		topic string
		body  any
	)
	switch ch.Type {
	case records.ChangeAdded:
		topic = p.topic + "/scans"
		body = ScanEvent{
			Label:     ch.Record.Label,
			Timestamp: ch.Record.Timestamp,
			Succeeded: ch.Record.Succeeded,
			Payload:   ch.Record.Payload,
		}
	case records.ChangeResynced:
		topic = p.topic + "/resync"
		body = ResyncEvent{Count: ch.Count, Timestamp: time.Now()}
	default:
		return
	}

	data, err := json.Marshal(body)
	if err != nil {
		p.log.Error("encoding scan event failed", logger.Error(err))
		return
	}

	select {
	case <-p.done:
	case p.queue <- message{topic: topic, payload: data}:
	default:
		p.log.Warn("mqtt publish queue full, dropping event", logger.String("topic", topic))
	}
}

// Close stops the worker after it drains queued events.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Publisher) run() {
	for {
		select {
		case msg := <-p.queue:
			p.publish(msg)
		case <-p.done:
			for {
				select {
				case msg := <-p.queue:
					p.publish(msg)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(msg message) {
	if !p.client.IsConnected() {
		p.log.Debug("mqtt not connected, dropping event", logger.String("topic", msg.topic))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultConfig().PublishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, msg.topic, msg.payload); err != nil {
		p.log.Warn("mqtt publish failed",
			logger.String("topic", msg.topic),
			logger.Error(err))
	}
}
