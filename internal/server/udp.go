package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/front-init/message-relay/internal/config"
	"github.com/front-init/message-relay/internal/metrics"
	"github.com/front-init/message-relay/internal/protocol"
	"github.com/front-init/message-relay/internal/store"
)

// Listener receives submission datagrams and persists them into the store.
// It is the only writer of the store document.
type Listener struct {
	conn    *net.UDPConn
	config  *config.ServerConfig
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Metrics

	// Timestamp source, replaced in tests
	now  func() time.Time
	keys store.KeyClock

	// Concurrency management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Datagram processing
	packetChan chan *incomingPacket
	stopOnce   sync.Once

	// Statistics
	packetsReceived  uint64
	packetsPersisted uint64
	packetsDropped   uint64
	decodeErrors     uint64
	storeErrors      uint64
	mu               sync.RWMutex
}

// incomingPacket represents a received datagram with metadata
type incomingPacket struct {
	data       []byte
	remoteAddr *net.UDPAddr
	receivedAt time.Time
}

// NewListener creates a new datagram listener
func NewListener(cfg *config.ServerConfig, logger *slog.Logger, st *store.Store, m *metrics.Metrics) *Listener {
	ctx, cancel := context.WithCancel(context.Background())

	return &Listener{
		config:     cfg,
		logger:     logger,
		store:      st,
		metrics:    m,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		packetChan: make(chan *incomingPacket, cfg.QueueSize),
	}
}

// Start binds the socket and begins receiving datagrams
func (l *Listener) Start() error {
	addr, err := net.ResolveUDPAddr("udp", l.config.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	l.conn = conn

	l.logger.Info("Listener started",
		slog.String("address", conn.LocalAddr().String()),
		slog.Int("buffer_size", l.config.BufferSize),
		slog.String("store_path", l.store.Path()),
	)

	// One worker only: merges must happen in arrival order and the store
	// has exactly one writer
	l.wg.Add(1)
	go l.persistLoop()

	l.wg.Add(1)
	go l.receiveLoop()

	return nil
}

// Addr returns the bound address, useful when configured with port 0
func (l *Listener) Addr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Stop closes the socket, persists whatever is still queued and waits for
// both goroutines to exit
func (l *Listener) Stop() error {
	var closeErr error

	l.stopOnce.Do(func() {
		l.logger.Info("Stopping listener...")

		l.cancel()

		if l.conn != nil {
			if err := l.conn.Close(); err != nil {
				closeErr = fmt.Errorf("close UDP socket: %w", err)
			}
		}

		l.wg.Wait()

		l.logger.Info("Listener stopped")
	})

	return closeErr
}

// receiveLoop is the main datagram receiving loop
func (l *Listener) receiveLoop() {
	defer l.wg.Done()
	// persistLoop drains the channel after it is closed
	defer close(l.packetChan)

	buffer := make([]byte, l.config.BufferSize)

	for {
		select {
		case <-l.ctx.Done():
			l.logger.Debug("Receive loop stopping due to context cancellation")
			return
		default:
		}

		// Read deadline lets the loop notice cancellation
		if err := l.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := l.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			select {
			case <-l.ctx.Done():
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				l.logger.Error("Failed to read datagram", slog.String("error", err.Error()))
				continue
			}
		}

		receivedAt := l.now()

		l.mu.Lock()
		l.packetsReceived++
		l.mu.Unlock()
		l.metrics.RecordDatagramReceived()

		// buffer is reused for the next read
		data := make([]byte, n)
		copy(data, buffer[:n])

		packet := &incomingPacket{
			data:       data,
			remoteAddr: remoteAddr,
			receivedAt: receivedAt,
		}

		select {
		case l.packetChan <- packet:
			l.metrics.SetQueueSize(len(l.packetChan))
		default:
			l.mu.Lock()
			l.packetsDropped++
			l.mu.Unlock()
			l.metrics.RecordDatagramDropped()

			l.logger.Warn("Persistence queue full, dropping datagram",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
		}
	}
}

// persistLoop writes queued datagrams into the store one at a time
func (l *Listener) persistLoop() {
	defer l.wg.Done()

	l.logger.Debug("Persistence worker started")

	for packet := range l.packetChan {
		l.metrics.SetQueueSize(len(l.packetChan))
		if err := l.handlePacket(packet); err != nil {
			l.logPacketError(packet, err)
		}
	}

	l.logger.Debug("Persistence worker stopped")
}

// handlePacket decodes a single datagram and merges it into the store.
// A failure affects only this datagram.
func (l *Listener) handlePacket(packet *incomingPacket) error {
	submission, err := protocol.Decode(packet.data)
	if err != nil {
		l.mu.Lock()
		l.decodeErrors++
		l.mu.Unlock()
		l.metrics.RecordDecodeError()
		return err
	}

	key := l.keys.Next(packet.receivedAt)
	record := store.Record{
		Username: submission.Username,
		Message:  submission.Message,
	}

	started := time.Now()
	count, err := l.store.Merge(map[string]store.Record{key: record})
	if err != nil {
		l.mu.Lock()
		l.storeErrors++
		l.mu.Unlock()
		l.metrics.RecordStoreError()
		return fmt.Errorf("persist record %q: %w", key, err)
	}

	l.mu.Lock()
	l.packetsPersisted++
	l.mu.Unlock()
	l.metrics.RecordDatagramPersisted(time.Since(started).Seconds())
	l.metrics.SetStoreRecords(count)

	l.logger.Debug("Record persisted",
		slog.String("key", key),
		slog.String("username", record.Username),
		slog.Int("message_length", len(record.Message)),
	)

	return nil
}

func (l *Listener) logPacketError(packet *incomingPacket, err error) {
	remote := "unknown"
	if packet.remoteAddr != nil {
		remote = packet.remoteAddr.String()
	}

	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) {
		l.logger.Warn("Discarding malformed datagram",
			slog.String("remote_addr", remote),
			slog.Int("packet_size", len(packet.data)),
			slog.String("error", err.Error()),
		)
		return
	}

	l.logger.Error("Failed to persist datagram",
		slog.String("remote_addr", remote),
		slog.Int("packet_size", len(packet.data)),
		slog.String("error", err.Error()),
	)
}

// GetStatistics returns current listener statistics
func (l *Listener) GetStatistics() ListenerStatistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return ListenerStatistics{
		PacketsReceived:  l.packetsReceived,
		PacketsPersisted: l.packetsPersisted,
		PacketsDropped:   l.packetsDropped,
		DecodeErrors:     l.decodeErrors,
		StoreErrors:      l.storeErrors,
		QueueSize:        uint64(len(l.packetChan)),
		QueueCapacity:    uint64(cap(l.packetChan)),
	}
}

// ListenerStatistics represents listener performance counters
type ListenerStatistics struct {
	PacketsReceived  uint64 `json:"packets_received"`
	PacketsPersisted uint64 `json:"packets_persisted"`
	PacketsDropped   uint64 `json:"packets_dropped"`
	DecodeErrors     uint64 `json:"decode_errors"`
	StoreErrors      uint64 `json:"store_errors"`
	QueueSize        uint64 `json:"queue_size"`
	QueueCapacity    uint64 `json:"queue_capacity"`
}
