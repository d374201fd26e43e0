package flights

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/flight-control/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Client fetches flight and position snapshots from the backend
type Client struct {
	httpClient   *http.Client
	flightsURL   string
	positionsURL string
	logger       *logger.Logger
	now          func() time.Time
}

// NewClient creates a new snapshot client for the two backend collections
func NewClient(flightsURL, positionsURL string, timeout time.Duration, loggerObj *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		flightsURL:   flightsURL,
		positionsURL: positionsURL,
		logger:       loggerObj.Named("flights-cli"),
		now:          time.Now,
	}
}

// FetchSnapshot issues both reads concurrently and waits for both.
// If either fails the whole snapshot fails with a *FetchError.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		flights   []Flight
		positions []Position
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.get(gctx, c.flightsURL)
		if err != nil {
			return err
		}
		decoded, rejected, err := decodeFlights(body)
		if err != nil {
			return &FetchError{Endpoint: c.flightsURL, Err: err}
		}
		c.logRejections(rejected)
		flights = decoded
		return nil
	})
	g.Go(func() error {
		body, err := c.get(gctx, c.positionsURL)
		if err != nil {
			return err
		}
		decoded, rejected, err := decodePositions(body)
		if err != nil {
			return &FetchError{Endpoint: c.positionsURL, Err: err}
		}
		c.logRejections(rejected)
		positions = decoded
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("Successfully fetched snapshot",
		logger.Int("flight_count", len(flights)),
		logger.Int("position_count", len(positions)),
	)

	return &Snapshot{
		Flights:   flights,
		Positions: positions,
		FetchedAt: c.now(),
	}, nil
}

// get performs one GET and returns the body of a 200 response
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching backend collection", logger.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: url, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Endpoint: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return body, nil
}

func (c *Client) logRejections(rejected []Rejection) {
	for _, r := range rejected {
		c.logger.Warn("Dropping invalid backend record",
			logger.String("collection", r.Collection),
			logger.Int("index", r.Index),
			logger.String("id", r.ID),
			logger.Error(r.Reason),
		)
	}
}
