// Package reporting uploads buffered control and tariff rows to an
// optional Supabase-backed reporting platform, mirroring the teacher's
// supabase.Client: a timeout-wrapped upload with lazy reconnect.
package reporting

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	supa "github.com/nedpals/supabase-go"

	"github.com/cepro/ems-block-dispatch/logsink"
)

const (
	uploadTimeout = 10 * time.Second

	rowTableName         = "dispatch_rows"
	intervalRowTableName = "dispatch_interval_rows"
)

// Client uploads buffered rows to Supabase. Unlike logsink.Repository, it
// holds no state of its own beyond the connection: rows to upload and
// confirmation of success/failure are the caller's responsibility.
type Client struct {
	url     string
	anonKey string
	schema  string

	subClient       *supa.Client
	shouldReconnect bool
	logger          *slog.Logger
}

// New returns a Client for the given Supabase project, deferring the
// actual connection until the first upload.
func New(url, anonKey, schema string) *Client {
	return &Client{
		url:             url,
		anonKey:         anonKey,
		schema:          schema,
		shouldReconnect: true,
		logger:          slog.Default().With("host", url),
	}
}

func (c *Client) reconnectIfNecessary() {
	if !c.shouldReconnect {
		return
	}

	subClient := supa.CreateClient(c.url, c.anonKey)
	subClient.DB.AddHeader("Accept-Profile", c.schema)
	subClient.DB.AddHeader("Content-Profile", c.schema)

	c.subClient = subClient
	c.shouldReconnect = false

	c.logger.Info("Created supabase client")
}

func (c *Client) setShouldReconnect() {
	c.shouldReconnect = true
}

// UploadRows uploads a batch of StoredRow to the dispatch_rows table.
func (c *Client) UploadRows(rows []logsink.StoredRow) error {
	return c.upload(supabaseRows(rows), rowTableName)
}

// UploadIntervalRows uploads a batch of StoredIntervalRow to the
// dispatch_interval_rows table.
func (c *Client) UploadIntervalRows(rows []logsink.StoredIntervalRow) error {
	return c.upload(supabaseIntervalRows(rows), intervalRowTableName)
}

func (c *Client) upload(payload interface{}, table string) error {
	c.reconnectIfNecessary()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.subClient.DB.From(table).Insert(payload).Execute(nil)
	}()

	select {
	case <-time.After(uploadTimeout):
		c.setShouldReconnect()
		return errors.New("reporting: upload timed out")
	case err := <-errCh:
		if err != nil {
			c.setShouldReconnect()
			return fmt.Errorf("upload to %s: %w", table, err)
		}
		return nil
	}
}
