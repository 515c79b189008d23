package infra

// printer.go: ticket transports for order printers.
// NetworkPrinter speaks raw ESC/POS over TCP (port 9100 unless the address
// names one). LogPrinter writes tickets to the log instead, for development
// and for sites without printers.

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"billpos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultPrinterPort = "9100"

// NetworkPrinter delivers tickets over raw TCP. Each printer gets its own
// circuit breaker so one dead printer does not slow the others.
type NetworkPrinter struct {
	cbConfig CircuitBreakerConfig
	dialer   net.Dialer

	mu       sync.Mutex
	breakers map[uuid.UUID]*CircuitBreaker
}

func NewNetworkPrinter(cbConfig CircuitBreakerConfig) *NetworkPrinter {
	return &NetworkPrinter{cbConfig: cbConfig, breakers: map[uuid.UUID]*CircuitBreaker{}}
}

func (n *NetworkPrinter) breaker(p model.Printer) *CircuitBreaker {
	n.mu.Lock()
	defer n.mu.Unlock()
	cb, ok := n.breakers[p.ID]
	if !ok {
		cb = NewCircuitBreaker("printer:"+p.Name, n.cbConfig)
		n.breakers[p.ID] = cb
	}
	return cb
}

// BreakerStates reports the state of every printer breaker seen so far, keyed
// by printer id, for the health endpoint.
func (n *NetworkPrinter) BreakerStates() map[string]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]string, len(n.breakers))
	for id, cb := range n.breakers {
		out[id.String()] = cb.State().String()
	}
	return out
}

// PrinterAddress appends the default raw printing port when none is given.
func PrinterAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), defaultPrinterPort)
}

// Deliver writes data to the printer. The context deadline bounds both the
// dial and the write.
func (n *NetworkPrinter) Deliver(ctx context.Context, p model.Printer, data []byte) error {
	return n.breaker(p).Execute(func() error {
		conn, err := n.dialer.DialContext(ctx, "tcp", PrinterAddress(p.Address))
		if err != nil {
			return fmt.Errorf("printer %s: connect: %w", p.Name, err)
		}
		defer conn.Close()

		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetWriteDeadline(deadline); err != nil {
				return fmt.Errorf("printer %s: %w", p.Name, err)
			}
		}
		if _, err := conn.Write(data); err != nil {
			return fmt.Errorf("printer %s: write: %w", p.Name, err)
		}
		return nil
	})
}

// LogPrinter accepts every ticket and logs its size. Delay simulates a slow
// device.
type LogPrinter struct {
	Delay time.Duration
}

func (l LogPrinter) Deliver(ctx context.Context, p model.Printer, data []byte) error {
	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	log.Info().Str("printer", p.Name).Str("address", p.Address).Int("bytes", len(data)).Msg("ticket printed to log")
	return nil
}
