package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/textconsole/internal/config"
	"github.com/dshills/textconsole/internal/console"
	"github.com/dshills/textconsole/internal/feed"
	"github.com/dshills/textconsole/internal/logging"
)

// demoText is cycled by the demo writers. Some entries are longer than a
// typical console row so wrapping shows up.
var demoText = []string{
	"console ready",
	"the quick brown fox jumps over the lazy dog",
	"0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
	"α β γ δ ε ζ η θ",
	"",
	"line buffers wrap at the column count and scroll when the last row fills",
	"ok",
}

// startWriters launches the text producers for this run on g: the exec
// command when one is configured, the demo writers otherwise.
func (app *Application) startWriters(ctx context.Context, g *errgroup.Group) {
	c := app.Console()
	if app.opts.Exec != "" {
		g.Go(func() error {
			return app.runExec(ctx, c)
		})
		return
	}
	runDemo(ctx, g, c, app.Settings().Demo)
}

// runExec streams the configured command into c. Command failures are
// reported on the console and in the log; they do not stop the
// application.
func (app *Application) runExec(ctx context.Context, c *console.Console) error {
	cols, rows := c.Buffer().Size()
	log := logging.Named("feed")

	err := feed.Exec(ctx, c, app.opts.Exec, feed.ExecOptions{
		Columns: cols,
		Rows:    rows,
		Log:     log,
	})

	var exitErr *feed.ExitError
	switch {
	case err == nil:
		c.WriteLine("[done]")
	case ctx.Err() != nil:
	case errors.As(err, &exitErr):
		c.Format("[exit %d]\n", exitErr.Code)
		log.WithFields(logrus.Fields{"command": exitErr.Command, "code": exitErr.Code}).Warn("command failed")
	default:
		cerr := NewComponentError("feed", "exec", err)
		c.WriteLine(cerr.Error())
		log.WithError(cerr).Error("command did not run")
	}
	return nil
}

// runDemo starts s.Writers demo writers on g. Each writes s.Lines lines, or
// runs until ctx is done when s.Lines is zero, pausing s.Interval between
// lines.
func runDemo(ctx context.Context, g *errgroup.Group, c *console.Console, s config.DemoSettings) {
	for id := 0; id < s.Writers; id++ {
		g.Go(func() error {
			return demoWriter(ctx, c, id, s)
		})
	}
}

func demoWriter(ctx context.Context, c *console.Console, id int, s config.DemoSettings) error {
	var tick <-chan time.Time
	if s.Interval > 0 {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for n := 0; s.Lines == 0 || n < s.Lines; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		c.Format("[%d:%04d] %s\n", id, n, demoText[(id+n)%len(demoText)])
	}
	return nil
}
