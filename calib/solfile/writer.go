package solfile

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-wavecal/calib/propagate"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
)

// Writer appends one block to an io.Writer. The header is written before the
// first row; Close ends the block. Writer implements propagate.Observer so
// rows can be stored as they are accepted; the first write error is kept and
// returned by Err and Close.
type Writer struct {
	w       io.Writer
	hdr     Header
	started bool
	closed  bool
	err     error
}

var _ propagate.Observer = (*Writer)(nil)

// NewWriter returns a Writer for hdr. A nil RunID is replaced by a new random
// one.
func NewWriter(w io.Writer, hdr Header) *Writer {
	if hdr.RunID == uuid.Nil {
		hdr.RunID = uuid.New()
	}

	return &Writer{w: w, hdr: hdr}
}

// Header returns the block header, including the assigned run id.
func (w *Writer) Header() Header { return w.hdr }

// WriteRow appends the coefficients of sol for row k. sol must have the
// header's basis, order and domain.
func (w *Writer) WriteRow(k int, sol wavesol.Solution) error {
	if w.err != nil {
		return w.err
	}

	if w.closed {
		return fmt.Errorf("solfile: write row %d after close", k)
	}

	if sol.Kind() != w.hdr.Function || sol.Order() != w.hdr.Order || sol.Domain() != w.hdr.Domain {
		return fmt.Errorf("solfile: row %d: %v order %d on %v does not match header %v order %d on %v",
			k, sol.Kind(), sol.Order(), sol.Domain(), w.hdr.Function, w.hdr.Order, w.hdr.Domain)
	}

	w.begin()
	w.write(formatRow(k, sol.Coef()))

	return w.err
}

// Close writes the header if nothing was written yet and terminates the
// block with a blank line. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}

	w.begin()
	w.write("\n")
	w.closed = true

	return w.err
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

// OnRowAccepted writes the accepted row.
func (w *Writer) OnRowAccepted(res propagate.RowResult) {
	if err := w.WriteRow(res.Row, res.Solution); err != nil && w.err == nil {
		w.err = err
	}
}

// OnRowRejected ignores rejected rows; they are absent from the block.
func (w *Writer) OnRowRejected(int, error) {}

// OnProgress is a no-op.
func (w *Writer) OnProgress(int, int) {}

func (w *Writer) begin() {
	if w.started {
		return
	}

	w.started = true
	w.write(formatHeader(w.hdr))
}

func (w *Writer) write(s string) {
	if w.err != nil {
		return
	}

	if _, err := io.WriteString(w.w, s); err != nil {
		w.err = fmt.Errorf("solfile: write: %w", err)
	}
}

// WriteImage writes sol as one complete block in ascending row order. The
// function, order and domain of hdr are taken from the first row.
func WriteImage(out io.Writer, hdr Header, sol *propagate.ImageSolution) error {
	if rows := sol.Rows(); len(rows) > 0 {
		first, _ := sol.Get(rows[0])
		hdr.Function, hdr.Order, hdr.Domain = first.Kind(), first.Order(), first.Domain()
	}

	w := NewWriter(out, hdr)

	for k, s := range sol.All() {
		if err := w.WriteRow(k, s); err != nil {
			return err
		}
	}

	return w.Close()
}
