// Package console implements an on-surface scrolling text console.
//
// A LineBuffer holds a fixed grid of character rows arranged as a ring.
// Text is wrapped at the column width and, once every row is used, the
// oldest row is reused for the newest text. A Console pairs a LineBuffer
// with the display state (layout, color, rotation, debug output) and the
// device resources needed to draw the rows each frame.
//
// Writers may run on any goroutine. Rendering and layout changes run on
// the goroutine that owns the surface:
//
//	dev := backend.NewRaster(640, 480, backend.DefaultRasterOptions())
//	c, err := console.NewWithDevice(dev, backend.FontBasic)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.SetLayout(dev.Bounds())
//
//	go func() {
//	    for i := 0; ; i++ {
//	        c.Format("tick %d\n", i)
//	    }
//	}()
//
//	for range ticker.C {
//	    c.Render()
//	}
//
// Changing the layout or restoring the device rebuilds the grid and
// discards all text.
package console
