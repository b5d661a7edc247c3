// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"strings"
	"sync"
)

// fakeConn is a scripted in-memory Connection. Reads are served from the
// script in order; once it is exhausted Read returns readErr, or 0, nil
// when readErr is nil.
type fakeConn struct {
	mu       sync.Mutex
	reads    [][]byte
	readErr  error
	writes   []string
	writeErr error
	maxWrite int // Caps bytes accepted per Write when > 0
	closed   bool
}

func newFakeConn(reads ...string) *fakeConn {
	c := &fakeConn{}
	for _, r := range reads {
		c.reads = append(c.reads, []byte(r))
	}
	return c
}

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.reads) > 0 {
		r := c.reads[0]
		n := copy(p, r)
		if n < len(r) {
			c.reads[0] = r[n:]
		} else {
			c.reads = c.reads[1:]
		}
		return n, nil
	}
	if c.readErr != nil {
		return 0, c.readErr
	}
	return 0, nil
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return 0, c.writeErr
	}
	n := len(p)
	if c.maxWrite > 0 && n > c.maxWrite {
		n = c.maxWrite
	}
	c.writes = append(c.writes, string(p[:n]))
	return n, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

// wire returns every byte written, in order
func (c *fakeConn) wire() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.writes, "")
}

func (c *fakeConn) push(data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = append(c.reads, []byte(data))
}
