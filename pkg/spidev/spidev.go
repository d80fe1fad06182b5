// Package spidev is the duplex word transport to an absolute encoder on a linux spidev port.
package spidev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/womat/debug"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	ErrBusy         = errors.New("spi exchange in progress")
	ErrNotConnected = errors.New("spi port not configured")
)

// Transport exchanges 16 bit words in spi mode 1, most significant byte first.
type Transport struct {
	name  string
	speed physic.Frequency

	mu   sync.Mutex
	port spi.PortCloser
	conn spi.Conn
	busy atomic.Bool
}

// New creates the transport for the spidev port name (e.g. "/dev/spidev0.0" or "SPI0.0").
// Configure opens the port.
func New(name string, speed physic.Frequency) *Transport {
	return &Transport{name: name, speed: speed}
}

// Configure (re)opens the port with the encoder settings.
func (t *Transport) Configure() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		if err := t.port.Close(); err != nil {
			debug.ErrorLog.Printf("close spi port %v: %v", t.name, err)
		}
		t.port, t.conn = nil, nil
	}

	p, err := spireg.Open(t.name)
	if err != nil {
		return fmt.Errorf("open spi port %v: %w", t.name, err)
	}

	c, err := p.Connect(t.speed, spi.Mode1, 8)
	if err != nil {
		p.Close()
		return fmt.Errorf("connect spi port %v: %w", t.name, err)
	}

	t.port, t.conn = p, c
	debug.InfoLog.Printf("spi port %v configured (%v, mode 1)", t.name, t.speed)
	return nil
}

// Ready reports whether no exchange is in progress.
func (t *Transport) Ready() bool {
	return !t.busy.Load()
}

// StartExchange sends tx and fills rx in the background, then calls done.
// A failed exchange is logged and done is not called.
func (t *Transport) StartExchange(tx, rx []uint16, done func()) error {
	if !t.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()
	if c == nil {
		t.busy.Store(false)
		return ErrNotConnected
	}

	w := make([]byte, 2*len(tx))
	for i, word := range tx {
		binary.BigEndian.PutUint16(w[2*i:], word)
	}

	go func() {
		defer t.busy.Store(false)

		r := make([]byte, len(w))
		t.mu.Lock()
		err := c.Tx(w, r)
		t.mu.Unlock()
		if err != nil {
			debug.ErrorLog.Printf("spi exchange on %v: %v", t.name, err)
			return
		}

		for i := range rx {
			if 2*i+1 < len(r) {
				rx[i] = binary.BigEndian.Uint16(r[2*i:])
			}
		}
		done()
	}()
	return nil
}

// Close releases the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port, t.conn = nil, nil
	return err
}
