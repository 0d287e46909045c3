package txscope

import (
	"context"
	"fmt"
)

// recordingDriver logs every driver call in order.
type recordingDriver struct {
	events []string
	opened int

	openErr, beginErr, commitErr, rollbackErr, closeErr error
}

func (d *recordingDriver) Open(_ context.Context) (Conn, error) {
	if d.openErr != nil {
		d.events = append(d.events, "open-failed")
		return nil, d.openErr
	}
	d.opened++
	id := d.opened
	d.events = append(d.events, fmt.Sprintf("open:%d", id))
	return &recordingConn{d: d, id: id}, nil
}

func (d *recordingDriver) count(event string) int {
	n := 0
	for _, e := range d.events {
		if e == event {
			n++
		}
	}
	return n
}

type recordingConn struct {
	d      *recordingDriver
	id     int
	closed bool
}

func (c *recordingConn) BeginTx(_ context.Context, level IsolationLevel) (Tx, error) {
	c.d.events = append(c.d.events, "begin:"+level.String())
	if c.d.beginErr != nil {
		return nil, c.d.beginErr
	}
	return &recordingTx{d: c.d}, nil
}

func (c *recordingConn) Close() error {
	c.closed = true
	c.d.events = append(c.d.events, fmt.Sprintf("close:%d", c.id))
	return c.d.closeErr
}

type recordingTx struct {
	d *recordingDriver
}

func (t *recordingTx) Commit(_ context.Context) error {
	t.d.events = append(t.d.events, "commit")
	return t.d.commitErr
}

func (t *recordingTx) Rollback(_ context.Context) error {
	t.d.events = append(t.d.events, "rollback")
	return t.d.rollbackErr
}
