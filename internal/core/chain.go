package core

import "io"

// Buffer is one link of an OutputChain. Last is set on the terminal
// buffer of the response only.
type Buffer struct {
	Data []byte
	Last bool
	next *Buffer
}

// Next returns the following buffer in the chain, or nil.
func (b *Buffer) Next() *Buffer { return b.next }

// OutputChain accumulates the body buffers produced by one request, in
// write order. It is owned by a single request and is not safe for
// concurrent use.
type OutputChain struct {
	head  *Buffer
	last  *Buffer
	size  int
	count int
}

// NewOutputChain returns an empty chain.
func NewOutputChain() *OutputChain { return &OutputChain{} }

// Append copies p into a new terminal buffer. The previous terminal
// buffer, if any, loses its Last flag. Adjacent writes are never merged.
func (c *OutputChain) Append(p []byte) {
	b := &Buffer{Data: append(make([]byte, 0, len(p)), p...), Last: true}
	if c.head == nil {
		c.head, c.last = b, b
	} else {
		c.last.Last = false
		c.last.next = b
		c.last = b
	}
	c.size += len(p)
	c.count++
}

// Head returns the first buffer, or nil when nothing was written.
func (c *OutputChain) Head() *Buffer { return c.head }

// Last returns the terminal buffer, or nil when nothing was written.
func (c *OutputChain) Last() *Buffer { return c.last }

// Empty reports whether no buffer was ever appended. A zero-length
// write still makes the chain non-empty.
func (c *OutputChain) Empty() bool { return c.head == nil }

// Len returns the total number of body bytes.
func (c *OutputChain) Len() int { return c.size }

// Buffers returns the number of links.
func (c *OutputChain) Buffers() int { return c.count }

// Bytes concatenates every buffer head to tail.
func (c *OutputChain) Bytes() []byte {
	out := make([]byte, 0, c.size)
	for b := c.head; b != nil; b = b.next {
		out = append(out, b.Data...)
	}
	return out
}

// WriteTo writes the chain to w in order.
func (c *OutputChain) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for b := c.head; b != nil; b = b.next {
		n, err := w.Write(b.Data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
