// Package fakeplugin is an in-process plugin that drives storage from text
// commands. It backs the end-to-end tests and the local demo endpoint.
//
// Commands arrive as Update payloads and answers leave as SessionMessage
// events:
//
//	store <name> <data>            -> stored <name> <data>
//	retrieve <name>                -> retrieve <name> succeeded (length N bytes)
//	retrieve-record-names          -> record-names a,b,c
//	shutdown-mode timeout          -> never acks request-shutdown
//	shutdown-mode token <t>        -> shutdown-token received <t>
//	retrieve-shutdown-token        -> retrieved shutdown-token <t>
//	retrieve-plugin-voucher        -> retrieved plugin-voucher: <voucher>
//	test-storage                   -> test-storage complete
package fakeplugin

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GriffinCanCode/plugstore/internal/plugin"
)

// DefaultVoucher is reported by retrieve-plugin-voucher
const DefaultVoucher = "gmp-fake placeholder voucher"

// ShutdownTokenRecord is the record written during a token-mode shutdown
const ShutdownTokenRecord = "shutdown-token"

// ErrClosed is returned by Send after Close
var ErrClosed = errors.New("fake plugin closed")

type shutdownMode int

const (
	shutdownAck shutdownMode = iota
	shutdownTimeout
	shutdownToken
)

type requestShutdown struct{}

// Plugin is a fake plugin instance
type Plugin struct {
	voucher string
	events  chan plugin.Event

	mu      sync.Mutex
	inbox   []any
	notify  chan struct{}
	pending map[uint64]chan plugin.StorageReply
	nextID  uint64

	// owned by the run goroutine
	mode  shutdownMode
	token string

	stop      chan struct{}
	closeOnce sync.Once
}

// Option configures a Plugin
type Option func(*Plugin)

// WithVoucher sets the voucher the plugin reports
func WithVoucher(v string) Option {
	return func(p *Plugin) { p.voucher = v }
}

// New starts a fake plugin
func New(opts ...Option) *Plugin {
	p := &Plugin{
		voucher: DefaultVoucher,
		events:  make(chan plugin.Event, 16),
		notify:  make(chan struct{}, 1),
		pending: make(map[uint64]chan plugin.StorageReply),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Events implements plugin.Instance
func (p *Plugin) Events() <-chan plugin.Event { return p.events }

// Send implements plugin.Instance. Commands are queued and never block on
// the plugin's progress.
func (p *Plugin) Send(cmd plugin.Command) error {
	select {
	case <-p.stop:
		return ErrClosed
	default:
	}

	switch c := cmd.(type) {
	case plugin.StorageReply:
		p.mu.Lock()
		ch, ok := p.pending[c.ID]
		delete(p.pending, c.ID)
		p.mu.Unlock()
		if !ok {
			return fmt.Errorf("no pending storage request %d", c.ID)
		}
		ch <- c
		return nil
	case plugin.Update:
		p.enqueue(c.Payload)
	case plugin.RequestShutdown:
		p.enqueue(requestShutdown{})
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
	return nil
}

// Close implements plugin.Instance
func (p *Plugin) Close() error {
	p.closeOnce.Do(func() { close(p.stop) })
	return nil
}

func (p *Plugin) enqueue(item any) {
	p.mu.Lock()
	p.inbox = append(p.inbox, item)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Plugin) next() (any, bool) {
	for {
		p.mu.Lock()
		if len(p.inbox) > 0 {
			item := p.inbox[0]
			p.inbox = p.inbox[1:]
			p.mu.Unlock()
			return item, true
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-p.stop:
			return nil, false
		}
	}
}

func (p *Plugin) run() {
	defer close(p.events)

	for {
		item, ok := p.next()
		if !ok {
			return
		}

		var err error
		switch v := item.(type) {
		case string:
			err = p.handle(v)
		case requestShutdown:
			err = p.shutdown()
		}
		if errors.Is(err, ErrClosed) {
			return
		}
	}
}

func (p *Plugin) emit(ev plugin.Event) error {
	select {
	case p.events <- ev:
		return nil
	case <-p.stop:
		return ErrClosed
	}
}

func (p *Plugin) say(format string, args ...any) error {
	return p.emit(plugin.SessionMessage{Payload: fmt.Sprintf(format, args...)})
}

// storage sends a request and waits for the host's reply
func (p *Plugin) storage(op plugin.StorageOp, name string, data []byte) (plugin.StorageReply, error) {
	ch := make(chan plugin.StorageReply, 1)

	p.mu.Lock()
	p.nextID++
	reqID := p.nextID
	p.pending[reqID] = ch
	p.mu.Unlock()

	if err := p.emit(plugin.StorageRequest{ID: reqID, Op: op, Name: name, Data: data}); err != nil {
		return plugin.StorageReply{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-p.stop:
		return plugin.StorageReply{}, ErrClosed
	}
}

func (p *Plugin) handle(msg string) error {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return p.say("unknown command %q", msg)
	}

	switch fields[0] {
	case "store":
		if len(fields) < 3 {
			return p.say("store needs a name and data")
		}
		name, data := fields[1], strings.Join(fields[2:], " ")
		reply, err := p.storage(plugin.OpPut, name, []byte(data))
		if err != nil {
			return err
		}
		if reply.Status != plugin.StatusOK {
			return p.say("store %s failed: %s", name, reply.Status)
		}
		return p.say("stored %s %s", name, data)

	case "retrieve":
		if len(fields) != 2 {
			return p.say("retrieve needs a name")
		}
		reply, err := p.storage(plugin.OpGet, fields[1], nil)
		if err != nil {
			return err
		}
		switch reply.Status {
		case plugin.StatusOK, plugin.StatusNotFound:
			return p.say("retrieve %s succeeded (length %d bytes)", fields[1], len(reply.Data))
		default:
			return p.say("retrieve %s failed: %s", fields[1], reply.Status)
		}

	case "retrieve-record-names":
		reply, err := p.storage(plugin.OpList, "", nil)
		if err != nil {
			return err
		}
		if reply.Status != plugin.StatusOK {
			return p.say("retrieve-record-names failed: %s", reply.Status)
		}
		return p.say("record-names %s", strings.Join(reply.Names, ","))

	case "shutdown-mode":
		if len(fields) >= 2 && fields[1] == "timeout" {
			p.mode = shutdownTimeout
			return nil
		}
		if len(fields) == 3 && fields[1] == "token" {
			p.mode = shutdownToken
			p.token = fields[2]
			return p.say("shutdown-token received %s", p.token)
		}
		return p.say("unknown shutdown-mode %q", msg)

	case "retrieve-shutdown-token":
		reply, err := p.storage(plugin.OpGet, ShutdownTokenRecord, nil)
		if err != nil {
			return err
		}
		if reply.Status != plugin.StatusOK {
			return p.say("retrieve-shutdown-token failed: %s", reply.Status)
		}
		return p.say("retrieved shutdown-token %s", reply.Data)

	case "retrieve-plugin-voucher":
		return p.say("retrieved plugin-voucher: %s", p.voucher)

	case "test-storage":
		if err := p.selfTest(); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			return p.say("test-storage failed: %v", err)
		}
		return p.say("test-storage complete")

	default:
		return p.say("unknown command %q", fields[0])
	}
}

func (p *Plugin) shutdown() error {
	switch p.mode {
	case shutdownTimeout:
		return nil
	case shutdownToken:
		reply, err := p.storage(plugin.OpPut, ShutdownTokenRecord, []byte(p.token))
		if err != nil {
			return err
		}
		if reply.Status != plugin.StatusOK {
			// ack anyway, the host decides what a lost token means
			_ = p.say("shutdown-token write failed: %s", reply.Status)
		}
	}
	return p.emit(plugin.ShutdownAck{})
}

// selfTest exercises write, overwrite, read, list and delete on scratch
// records
func (p *Plugin) selfTest() error {
	const a, b = "test-storage-a", "test-storage-b"

	expect := func(op plugin.StorageOp, name string, data []byte, want plugin.Status) (plugin.StorageReply, error) {
		reply, err := p.storage(op, name, data)
		if err != nil {
			return reply, err
		}
		if reply.Status != want {
			return reply, fmt.Errorf("%s %s: got %s, want %s", op, name, reply.Status, want)
		}
		return reply, nil
	}

	if _, err := expect(plugin.OpGet, a, nil, plugin.StatusNotFound); err != nil {
		return err
	}
	if _, err := expect(plugin.OpPut, a, []byte("first"), plugin.StatusOK); err != nil {
		return err
	}
	if _, err := expect(plugin.OpPut, a, []byte("second value"), plugin.StatusOK); err != nil {
		return err
	}
	reply, err := expect(plugin.OpGet, a, nil, plugin.StatusOK)
	if err != nil {
		return err
	}
	if !bytes.Equal(reply.Data, []byte("second value")) {
		return fmt.Errorf("read back %q after overwrite", reply.Data)
	}
	if _, err := expect(plugin.OpPut, b, nil, plugin.StatusOK); err != nil {
		return err
	}
	reply, err = expect(plugin.OpGet, b, nil, plugin.StatusOK)
	if err != nil {
		return err
	}
	if len(reply.Data) != 0 {
		return fmt.Errorf("empty record read back %d bytes", len(reply.Data))
	}

	reply, err = expect(plugin.OpList, "", nil, plugin.StatusOK)
	if err != nil {
		return err
	}
	found := 0
	for _, n := range reply.Names {
		if n == a || n == b {
			found++
		}
	}
	if found != 2 {
		return fmt.Errorf("listed %v, missing scratch records", reply.Names)
	}

	for _, name := range []string{a, b} {
		if _, err := expect(plugin.OpDelete, name, nil, plugin.StatusOK); err != nil {
			return err
		}
		if _, err := expect(plugin.OpGet, name, nil, plugin.StatusNotFound); err != nil {
			return err
		}
	}
	return nil
}
