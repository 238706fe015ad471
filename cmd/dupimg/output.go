package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	dupimg "github.com/mattkeenan/dupimg/pkg"
)

// progressPrinter reports each fingerprinted file. On a terminal it keeps a
// single updating counter line, otherwise it prints one path per line.
type progressPrinter struct {
	out         io.Writer
	interactive bool
	count       int
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	p := &progressPrinter{out: out}
	if f, ok := out.(*os.File); ok {
		p.interactive = term.IsTerminal(int(f.Fd()))
	}
	return p
}

// Print is called from a single goroutine by SyncFolder
func (p *progressPrinter) Print(entry dupimg.FingerprintEntry) {
	p.count++
	if p.interactive {
		fmt.Fprintf(p.out, "\r\033[K[%d] %s", p.count, entry.Identity)
		return
	}
	fmt.Fprintln(p.out, entry.Identity)
}

// Done terminates the counter line
func (p *progressPrinter) Done() {
	if p.interactive && p.count > 0 {
		fmt.Fprintln(p.out)
	}
}

// resultWriter prints action results in one output format
type resultWriter func(w io.Writer, root string, results []dupimg.ActionResult) error

// newResultWriter picks the writer for format, so an unsupported format is
// rejected before any duplicate is moved
func newResultWriter(format string) (resultWriter, error) {
	switch strings.ToLower(format) {
	case "json":
		return func(w io.Writer, _ string, results []dupimg.ActionResult) error {
			return dupimg.WriteJSON(w, results)
		}, nil
	case "tree":
		return func(w io.Writer, root string, results []dupimg.ActionResult) error {
			if len(results) == 0 {
				return nil
			}
			_, err := fmt.Fprint(w, dupimg.RenderTree(root, results))
			return err
		}, nil
	case "human", "":
		return func(w io.Writer, _ string, results []dupimg.ActionResult) error {
			for _, result := range results {
				if _, err := fmt.Fprintln(w, result.Message()); err != nil {
					return err
				}
			}
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// writeResults prints action results in the given format
func writeResults(w io.Writer, format, root string, results []dupimg.ActionResult) error {
	write, err := newResultWriter(format)
	if err != nil {
		return err
	}
	return write(w, root, results)
}
