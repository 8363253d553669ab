package render

import (
	"errors"
	"sync"

	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/logging"
	"github.com/mwiater/aletheia/internal/stats"
)

const defaultQueue = 16

// ErrNotInitialized is reported when a render arrives before Init.
var ErrNotInitialized = errors.New("render surface not initialized")

type command interface{ isCommand() }

type initCmd struct {
	surface Surface
	frame   Frame
}

type resizeCmd struct {
	width, height int
	dpr           float64
}

type renderCmd struct {
	points    []engine.RenderPoint
	envelopes []stats.Envelope
}

type flushCmd struct {
	done chan struct{}
}

func (initCmd) isCommand()   {}
func (resizeCmd) isCommand() {}
func (renderCmd) isCommand() {}
func (flushCmd) isCommand()  {}

// Channel owns a rendering goroutine. Sends are fire-and-forget and every
// message is copied, so callers may reuse their slices immediately.
type Channel struct {
	mu      sync.Mutex
	closed  bool
	cmds    chan command
	stopped chan struct{}
	onError func(error)
}

// NewChannel starts the rendering goroutine. onError may be nil.
func NewChannel(onError func(error)) *Channel {
	c := &Channel{
		cmds:    make(chan command, defaultQueue),
		stopped: make(chan struct{}),
		onError: onError,
	}
	go c.loop()
	return c
}

func (c *Channel) send(cmd command) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.cmds <- cmd
	return true
}

func (c *Channel) Init(surface Surface, width, height int, dpr float64, colors []string) {
	c.send(initCmd{
		surface: surface,
		frame:   Frame{Width: width, Height: height, DPR: dpr, Colors: append([]string(nil), colors...)},
	})
}

func (c *Channel) Resize(width, height int, dpr float64) {
	c.send(resizeCmd{width: width, height: height, dpr: dpr})
}

func (c *Channel) Render(points []engine.RenderPoint, envelopes []stats.Envelope) {
	c.send(renderCmd{
		points:    append([]engine.RenderPoint(nil), points...),
		envelopes: append([]stats.Envelope(nil), envelopes...),
	})
}

// Flush blocks until every command queued before it has been handled.
func (c *Channel) Flush() {
	done := make(chan struct{})
	if !c.send(flushCmd{done: done}) {
		return
	}
	<-done
}

// Close drains queued commands and stops the goroutine.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.stopped
		return
	}
	c.closed = true
	close(c.cmds)
	c.mu.Unlock()
	<-c.stopped
}

func (c *Channel) loop() {
	defer close(c.stopped)
	var (
		surface Surface
		frame   Frame
	)
	for cmd := range c.cmds {
		switch m := cmd.(type) {
		case initCmd:
			surface = m.surface
			frame = m.frame
		case resizeCmd:
			frame.Width, frame.Height, frame.DPR = m.width, m.height, m.dpr
		case renderCmd:
			if surface == nil {
				c.fail(ErrNotInitialized)
				continue
			}
			if err := surface.Present(Draw(frame, m.points, m.envelopes)); err != nil {
				c.fail(err)
			}
		case flushCmd:
			close(m.done)
		}
	}
}

func (c *Channel) fail(err error) {
	logging.LogEvent("Render failed: %v", err)
	if c.onError != nil {
		c.onError(err)
	}
}
