package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/ariel-frischer/hookrelay/internal/outcome"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Display shows the progress of handlers run one at a time
type Display struct {
	out          io.Writer
	capabilities TerminalCapabilities
	symbols      Symbols
	spinner      *spinner.Spinner
}

// NewDisplay creates a display writing to out
func NewDisplay(out io.Writer, caps TerminalCapabilities) *Display {
	return &Display{
		out:          out,
		capabilities: caps,
		symbols:      SelectSymbols(caps),
	}
}

// Start begins showing progress for a channel. On a terminal this animates a
// spinner; otherwise it prints a single line.
func (d *Display) Start(channel string) {
	msg := fmt.Sprintf("Running %s", channel)

	if !d.capabilities.IsTTY {
		fmt.Fprintln(d.out, msg)
		return
	}

	d.Stop()
	d.spinner = spinner.New(
		spinner.CharSets[d.symbols.SpinnerSet],
		100*time.Millisecond,
		spinner.WithWriter(d.out),
	)
	d.spinner.Suffix = " " + msg
	d.spinner.Start()
}

// Finish stops the spinner and prints the channel's result
func (d *Display) Finish(o outcome.Outcome) {
	d.Stop()
	fmt.Fprintln(d.out, d.Line(o))
}

// Stop stops the spinner without printing a result
func (d *Display) Stop() {
	if d.spinner != nil {
		d.spinner.Stop()
		d.spinner = nil
	}
}

// Line formats one outcome as a result line
func (d *Display) Line(o outcome.Outcome) string {
	switch {
	case o.Failed():
		line := fmt.Sprintf("%s %s %s: %s", d.mark(d.symbols.Failure, color.FgRed), o.Channel, o.Decision, o.Error)
		if o.Stderr != "" {
			line += "\n    " + o.Stderr
		}
		return line
	case o.Decision.Skipped():
		return fmt.Sprintf("%s %s %s", d.mark(d.symbols.Skipped, color.FgYellow), o.Channel, o.Decision)
	default:
		return fmt.Sprintf("%s %s %s (%s)", d.mark(d.symbols.Checkmark, color.FgGreen), o.Channel, o.Decision, o.Duration.Round(time.Millisecond))
	}
}

func (d *Display) mark(symbol string, attr color.Attribute) string {
	if !d.capabilities.SupportsColor {
		return symbol
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(symbol)
}
