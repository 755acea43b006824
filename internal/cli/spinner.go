package cli

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// pauser is the part of *spinner.Spinner the console writer drives.
type pauser interface {
	Active() bool
	Start()
	Stop()
}

// consoleWriter carries log output to the terminal. While a spinner is
// running it is cleared before each write and restarted afterwards, so
// frames never land in the middle of a log line.
type consoleWriter struct {
	mu      sync.Mutex
	w       io.Writer
	spinner pauser
}

func (c *consoleWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.spinner != nil && c.spinner.Active() {
		c.spinner.Stop()
		defer c.spinner.Start()
	}
	return c.w.Write(p)
}

func (c *consoleWriter) attach(s pauser) {
	c.mu.Lock()
	c.spinner = s
	c.mu.Unlock()
}

// spin shows a spinner on the console while a request is in flight.
// Nothing is drawn unless the console is a terminal.
func (c *consoleWriter) spin(suffix string) func() {
	f, ok := c.w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = suffix
	s.Start()
	c.attach(s)

	return func() {
		c.attach(nil)
		s.Stop()
	}
}
