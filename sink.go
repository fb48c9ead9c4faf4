package maskrle

import (
	"encoding/csv"
	"fmt"
)

// OrderedWriter writes CSV records in sequence order even when they arrive
// out of order from parallel workers.  It is owned by a single writer
// goroutine and is not safe for concurrent use
type OrderedWriter struct {
	w       *csv.Writer
	next    int
	pending map[int][]string
}

// NewOrderedWriter returns an OrderedWriter expecting sequence numbers
// starting at zero
func NewOrderedWriter(w *csv.Writer) *OrderedWriter {
	return &OrderedWriter{
		w:       w,
		pending: make(map[int][]string),
	}
}

// Header writes a header record immediately, outside of the sequence
func (o *OrderedWriter) Header(record []string) error {
	return o.w.Write(record)
}

// Write queues the record for sequence number seq and writes out every
// record that is now contiguous
func (o *OrderedWriter) Write(seq int, record []string) error {

	if seq < o.next {
		return fmt.Errorf("sequence %d already written", seq)
	}

	if _, exists := o.pending[seq]; exists {
		return fmt.Errorf("sequence %d queued twice", seq)
	}

	o.pending[seq] = record

	for {
		rec, ok := o.pending[o.next]

		if !ok {
			break
		}

		if err := o.w.Write(rec); err != nil {
			return err
		}

		delete(o.pending, o.next)
		o.next++
	}

	return nil
}

// Pending returns the number of records held back waiting on an earlier
// sequence number
func (o *OrderedWriter) Pending() int {
	return len(o.pending)
}

// Flush writes any buffered data to the underlying writer.  Records still
// pending are an error as they indicate a gap in the sequence
func (o *OrderedWriter) Flush() error {

	o.w.Flush()

	if err := o.w.Error(); err != nil {
		return err
	}

	if len(o.pending) > 0 {
		return fmt.Errorf("%d records pending, sequence %d never written",
			len(o.pending), o.next)
	}

	return nil
}
