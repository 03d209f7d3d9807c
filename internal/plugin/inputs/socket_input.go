package inputs

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
)

// DefaultSocketAddress is used when no address is configured.
const DefaultSocketAddress = "localhost:8888"

// maxLineSize bounds a single socket message.
const maxLineSize = 1 << 20

// SocketInput accepts stream connections; every newline-terminated line is
// one message.
type SocketInput struct {
	plugin.BasePlugin
	protocol  string
	address   string
	queueName string
	queue     triggerQueue

	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewSocketInput creates a new socket input instance
func NewSocketInput(id string) *SocketInput {
	return &SocketInput{
		BasePlugin: plugin.NewBasePlugin(id, "Socket Input", model.InputPluginType),
		protocol:   "tcp",
		address:    DefaultSocketAddress,
		queueName:  DefaultQueue,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Validate accepts stream protocols only
func (p *SocketInput) Validate() bool {
	switch p.ConfigString("protocol", "tcp") {
	case "tcp", "tcp4", "tcp6", "unix":
		return true
	}
	return false
}

// Initialize reads protocol, address and queue name
func (p *SocketInput) Initialize() bool {
	p.protocol = p.ConfigString("protocol", "tcp")
	p.address = p.ConfigString("address", DefaultSocketAddress)
	p.queueName = p.ConfigString("queue", DefaultQueue)
	p.queue.capacity = p.ConfigInt("capacity", 0)

	p.SetStatus(model.StatusInitialized)
	return true
}

// Start opens the listener
func (p *SocketInput) Start() bool {
	listener, err := net.Listen(p.protocol, p.address)
	if err != nil {
		p.PublishError(fmt.Errorf("listen %s %s: %w", p.protocol, p.address, err))
		return false
	}

	p.mu.Lock()
	p.listener = listener
	p.mu.Unlock()

	p.wg.Add(1)
	go p.acceptLoop(listener)

	p.SetStatus(model.StatusRunning)
	return true
}

// Stop closes the listener and every open connection
func (p *SocketInput) Stop() bool {
	p.mu.Lock()
	listener := p.listener
	p.listener = nil
	for conn := range p.conns {
		conn.Close()
	}
	p.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	p.wg.Wait()

	p.SetStatus(model.StatusStopped)
	return true
}

// Addr returns the bound address, or nil when not listening.
func (p *SocketInput) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

func (p *SocketInput) acceptLoop(listener net.Listener) {
	defer p.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			p.PublishError(fmt.Errorf("accept: %w", err))
			return
		}

		p.mu.Lock()
		if p.listener == nil {
			p.mu.Unlock()
			conn.Close()
			return
		}
		p.conns[conn] = struct{}{}
		p.mu.Unlock()

		p.wg.Add(1)
		go p.handleConnection(conn)
	}
}

func (p *SocketInput) handleConnection(conn net.Conn) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		delete(p.conns, conn)
		p.mu.Unlock()
		conn.Close()
	}()

	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		msg := newTrigger(p.queueName, scanner.Text(), map[string]string{
			"transport": p.protocol,
			"remote":    remote,
		})
		if err := p.queue.push(msg); err != nil {
			p.PublishError(err)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		p.PublishError(fmt.Errorf("read from %s: %w", remote, err))
	}
}

// Collect drains received lines, one TRIGGER batch each
func (p *SocketInput) Collect() []*model.DataBatch {
	if p.GetStatus() != model.StatusRunning {
		return nil
	}
	return p.queue.drain(p.ID())
}

var _ model.Drainer = (*SocketInput)(nil)

// Drain empties the queue whatever the input's status.
func (p *SocketInput) Drain() []*model.DataBatch {
	return p.queue.drain(p.ID())
}
