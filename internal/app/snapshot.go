package app

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/textconsole/internal/renderer/backend"
)

// runSnapshot renders one frame onto a raster surface and writes it as a
// PNG. Writers run to completion first: the exec command until it exits,
// or the demo writers for a finite number of unpaced lines.
func (app *Application) runSnapshot(ctx context.Context) error {
	width, height, err := ParseSize(app.opts.Size)
	if err != nil {
		return &InitError{Component: "raster", Err: err}
	}

	raster := backend.NewRaster(width, height, backend.DefaultRasterOptions())
	if err := app.attach(raster); err != nil {
		return err
	}
	c := app.Console()
	defer c.ReleaseDevice()

	g, gctx := errgroup.WithContext(ctx)
	if app.opts.Exec != "" {
		g.Go(func() error {
			return app.runExec(gctx, c)
		})
	} else {
		demo := app.Settings().Demo
		demo.Interval = 0
		if demo.Lines == 0 {
			_, rows := c.Buffer().Size()
			demo.Lines = rows
		}
		runDemo(gctx, g, c, demo)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.Render()

	f, err := os.Create(app.opts.PNGPath)
	if err != nil {
		return NewComponentError("snapshot", "create", err)
	}
	if err := errors.Join(raster.EncodePNG(f), f.Close()); err != nil {
		return NewComponentError("snapshot", "encode", err)
	}

	app.log.WithFields(logrus.Fields{
		"path":  app.opts.PNGPath,
		"lines": len(c.Lines()),
	}).Info("snapshot written")
	return nil
}
