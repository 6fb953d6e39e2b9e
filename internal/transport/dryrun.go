package transport

import (
	"context"
	"sync"

	logx "wablast/pkg/logx"
)

// DryRun logs deliveries instead of sending them. It is always connected and
// treats every address as registered.
type DryRun struct {
	log logx.Logger

	mu   sync.Mutex
	sent []Sent
}

type Sent struct {
	Address string
	Body    string
}

func NewDryRun(log logx.Logger) *DryRun {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &DryRun{log: log}
}

func (d *DryRun) Send(ctx context.Context, address, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.sent = append(d.sent, Sent{Address: address, Body: body})
	d.mu.Unlock()
	d.log.Info("dry-run send", logx.String("to", address), logx.Int("len", len(body)))
	return nil
}

func (d *DryRun) Connected() bool { return true }

func (d *DryRun) IsRegistered(ctx context.Context, address string) (bool, error) {
	return ctx.Err() == nil, ctx.Err()
}

// Sent returns a copy of every recorded delivery.
func (d *DryRun) Sent() []Sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Sent(nil), d.sent...)
}
