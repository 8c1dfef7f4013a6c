// Package qmp speaks enough of the QEMU Machine Protocol to check on and
// stop a VM through the monitor socket charon gives every qemu instance.
package qmp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/psantana5/charon/pkg/errs"
)

// Greeting is the banner QEMU sends on connect
type Greeting struct {
	QMP struct {
		Version struct {
			QEMU struct {
				Major int `json:"major"`
				Minor int `json:"minor"`
				Micro int `json:"micro"`
			} `json:"qemu"`
		} `json:"version"`
		Capabilities []string `json:"capabilities"`
	} `json:"QMP"`
}

// Status is the reply to query-status
type Status struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

type command struct {
	Execute   string      `json:"execute"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type reply struct {
	Return json.RawMessage `json:"return"`
	Error  *struct {
		Class string `json:"class"`
		Desc  string `json:"desc"`
	} `json:"error"`
	Event string `json:"event"`
}

// Client is a connected, negotiated monitor session
type Client struct {
	conn     net.Conn
	dec      *json.Decoder
	mu       sync.Mutex
	greeting Greeting
}

// Dial connects to the monitor socket and leaves command mode negotiated
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindIOFailure, "qmp", socketPath, err)
	}

	c := &Client{
		conn: conn,
		dec:  json.NewDecoder(bufio.NewReader(conn)),
	}
	c.setDeadline(ctx)

	if err := c.dec.Decode(&c.greeting); err != nil {
		conn.Close()
		return nil, errs.Wrap(errs.KindMalformed, "qmp", socketPath, fmt.Errorf("reading greeting: %w", err))
	}

	if _, err := c.Execute(ctx, "qmp_capabilities", nil); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) setDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		return
	}
	c.conn.SetDeadline(time.Time{})
}

// Greeting returns the banner received on connect
func (c *Client) Greeting() Greeting {
	return c.greeting
}

// Execute runs one command and returns its "return" payload. Asynchronous
// events that arrive first are skipped.
func (c *Client) Execute(ctx context.Context, name string, args interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setDeadline(ctx)

	data, err := json.Marshal(command{Execute: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return nil, errs.Wrap(errs.KindIOFailure, "qmp", name, err)
	}

	for {
		var r reply
		if err := c.dec.Decode(&r); err != nil {
			return nil, errs.Wrap(errs.KindIOFailure, "qmp", name, err)
		}
		if r.Event != "" {
			continue
		}
		if r.Error != nil {
			return nil, errs.New(errs.KindInvalid, "qmp", name, fmt.Sprintf("%s: %s", r.Error.Class, r.Error.Desc))
		}
		return r.Return, nil
	}
}

// Status queries the VM run state
func (c *Client) Status(ctx context.Context) (*Status, error) {
	raw, err := c.Execute(ctx, "query-status", nil)
	if err != nil {
		return nil, err
	}
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errs.Wrap(errs.KindMalformed, "qmp", "query-status", err)
	}
	return &s, nil
}

// Powerdown asks the guest to shut down via ACPI
func (c *Client) Powerdown(ctx context.Context) error {
	_, err := c.Execute(ctx, "system_powerdown", nil)
	return err
}

// Quit stops qemu immediately
func (c *Client) Quit(ctx context.Context) error {
	_, err := c.Execute(ctx, "quit", nil)
	return err
}

// Close closes the monitor connection
func (c *Client) Close() error {
	return c.conn.Close()
}
