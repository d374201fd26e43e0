package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/yegors/flight-control/internal/flights"
	"github.com/yegors/flight-control/pkg/logger"
)

// Subject suffixes appended to the configured prefix
const (
	SubjectMarkerCreated = "marker.created"
	SubjectMarkerUpdated = "marker.updated"
	SubjectMarkerRemoved = "marker.removed"
	SubjectListActive    = "list.active"
	SubjectListUpcoming  = "list.upcoming"
	SubjectStatus        = "status"
)

// Config holds the JetStream connection settings
type Config struct {
	URL           string
	SubjectPrefix string
	Stream        string
}

// Event is the payload published for every board operation
type Event struct {
	Type        string                   `json:"type"`
	Handle      flights.MarkerHandle     `json:"handle,omitempty"`
	ID          string                   `json:"id,omitempty"`
	Marker      *flights.Marker          `json:"marker,omitempty"`
	Flights     []flights.ListEntry      `json:"flights,omitempty"`
	Status      *flights.DashboardStatus `json:"status,omitempty"`
	PublishedAt time.Time                `json:"published_at"`
}

// publisher is the subset of JetStream used to publish events
type publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Client mirrors board operations to a JetStream stream
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	pub    publisher
	prefix string
	logger *logger.Logger

	mu  sync.Mutex
	ids map[flights.MarkerHandle]string
	now func() time.Time
}

// New connects to NATS and makes sure the board stream exists
func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is empty")
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("flight-control"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
		Storage:  nats.MemoryStorage,
		MaxAge:   time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	c := newClient(js, cfg.SubjectPrefix, log)
	c.conn = nc
	c.js = js
	c.logger.Info("Connected to NATS",
		logger.String("url", nc.ConnectedUrl()),
		logger.String("stream", cfg.Stream),
		logger.String("subject_prefix", cfg.SubjectPrefix))
	return c, nil
}

func newClient(pub publisher, prefix string, log *logger.Logger) *Client {
	return &Client{
		pub:    pub,
		prefix: prefix,
		logger: log.Named("nats"),
		ids:    make(map[flights.MarkerHandle]string),
		now:    time.Now,
	}
}

// Subject returns the full subject for a suffix
func (c *Client) Subject(suffix string) string {
	return c.prefix + "." + suffix
}

func (c *Client) publish(suffix string, event Event) error {
	event.Type = suffix
	event.PublishedAt = c.now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := c.pub.Publish(c.Subject(suffix), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (c *Client) CreateMarker(id string, marker flights.Marker) (flights.MarkerHandle, error) {
	handle := flights.MarkerHandle(uuid.NewString())
	if err := c.publish(SubjectMarkerCreated, Event{Handle: handle, ID: id, Marker: &marker}); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.ids[handle] = id
	c.mu.Unlock()
	return handle, nil
}

func (c *Client) UpdateMarker(handle flights.MarkerHandle, marker flights.Marker) error {
	return c.publish(SubjectMarkerUpdated, Event{Handle: handle, ID: marker.ID, Marker: &marker})
}

func (c *Client) RemoveMarker(handle flights.MarkerHandle) error {
	c.mu.Lock()
	id := c.ids[handle]
	c.mu.Unlock()

	if err := c.publish(SubjectMarkerRemoved, Event{Handle: handle, ID: id}); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.ids, handle)
	c.mu.Unlock()
	return nil
}

func (c *Client) RenderActive(entries []flights.ListEntry) error {
	return c.publish(SubjectListActive, Event{Flights: entries})
}

func (c *Client) RenderUpcoming(entries []flights.ListEntry) error {
	return c.publish(SubjectListUpcoming, Event{Flights: entries})
}

func (c *Client) NotifyStatus(status flights.DashboardStatus) error {
	return c.publish(SubjectStatus, Event{Status: &status})
}

// SubscribeEvents delivers every event published under the prefix
func (c *Client) SubscribeEvents(handler func(subject string, event Event)) (*nats.Subscription, error) {
	if c.js == nil {
		return nil, errors.New("nats client is not connected")
	}
	sub, err := c.js.Subscribe(c.prefix+".>", func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Warn("Failed to unmarshal board event", logger.String("subject", msg.Subject), logger.Error(err))
			return
		}
		handler(msg.Subject, event)
	}, nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
