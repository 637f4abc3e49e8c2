package net

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxFrameSize is the default limit on the size of one frame.
	DefaultMaxFrameSize = 16 << 20
	// DefaultQueueSize is the default number of frames a Conn buffers for
	// writing.
	DefaultQueueSize = 1024

	bufSize = 64 << 10
)

var (
	// ErrQueueFull is returned by Write when the write queue is full.
	ErrQueueFull = errors.New("write queue full")
	// ErrFrameTooLarge is returned for frames above the size limit, in either
	// direction.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrConnClosed is returned by Write after Close.
	ErrConnClosed = errors.New("connection closed")
)

// ConnConfig sets the limits of a Conn.
type ConnConfig struct {
	MaxFrameSize int
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultConnConfig returns the default limits.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		MaxFrameSize: DefaultMaxFrameSize,
		QueueSize:    DefaultQueueSize,
		WriteTimeout: 10 * time.Second,
	}
}

// Conn turns a stream into a sequence of length-prefixed frames. It implements
// the overlay.Connection interface.
type Conn struct {
	conn net.Conn
	conf ConnConfig

	writeCh chan []byte

	closeLock sync.Mutex
	closed    bool
	closeCh   chan struct{}

	onCloseOnce sync.Once
	onClose     func(error)

	logger *logrus.Entry
}

// NewConn wraps conn. Nothing is read or written until Start.
func NewConn(conn net.Conn, conf ConnConfig, logger *logrus.Entry) *Conn {
	if conf.MaxFrameSize <= 0 {
		conf.MaxFrameSize = DefaultMaxFrameSize
	}
	if conf.QueueSize <= 0 {
		conf.QueueSize = DefaultQueueSize
	}

	return &Conn{
		conn:    conn,
		conf:    conf,
		writeCh: make(chan []byte, conf.QueueSize),
		closeCh: make(chan struct{}),
		logger:  logger.WithField("remote", conn.RemoteAddr().String()),
	}
}

// Start launches the reader and writer goroutines. onFrame is called for every
// frame read, in order; onClose is called once when the stream fails or the
// remote closes it, but not after a local Close.
func (c *Conn) Start(onFrame func([]byte), onClose func(error)) {
	c.onClose = onClose
	go c.readLoop(onFrame)
	go c.writeLoop()
}

// Write queues frame for sending. It never blocks.
func (c *Conn) Write(frame []byte) error {
	if len(frame) > c.conf.MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	c.closeLock.Lock()
	defer c.closeLock.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.writeCh <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// RemoteAddr returns the address of the remote end.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the stream. Queued frames are abandoned. It is idempotent.
func (c *Conn) Close() error {
	c.closeLock.Lock()
	defer c.closeLock.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	// a local close is not reported
	c.onCloseOnce.Do(func() {})

	return c.conn.Close()
}

func (c *Conn) fail(err error) {
	c.onCloseOnce.Do(func() {
		if c.onClose != nil {
			c.onClose(err)
		}
	})
	c.Close()
}

func (c *Conn) readLoop(onFrame func([]byte)) {
	r := bufio.NewReaderSize(c.conn, bufSize)
	var header [4]byte

	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			c.fail(err)
			return
		}

		size := binary.BigEndian.Uint32(header[:])
		if int64(size) > int64(c.conf.MaxFrameSize) {
			c.logger.WithField("size", size).Warn("Refusing oversized frame")
			c.fail(fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size))
			return
		}

		frame := make([]byte, size)
		if _, err := io.ReadFull(r, frame); err != nil {
			c.fail(err)
			return
		}

		onFrame(frame)
	}
}

func (c *Conn) writeLoop() {
	w := bufio.NewWriterSize(c.conn, bufSize)
	var header [4]byte

	for {
		select {
		case frame := <-c.writeCh:
			if c.conf.WriteTimeout > 0 {
				c.conn.SetWriteDeadline(time.Now().Add(c.conf.WriteTimeout))
			}

			binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
			if _, err := w.Write(header[:]); err != nil {
				c.fail(err)
				return
			}
			if _, err := w.Write(frame); err != nil {
				c.fail(err)
				return
			}

			// flush once the queue is drained
			if len(c.writeCh) == 0 {
				if err := w.Flush(); err != nil {
					c.fail(err)
					return
				}
			}
		case <-c.closeCh:
			return
		}
	}
}
