package link

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"tinygo.org/x/bluetooth"
)

// bleChunk is the largest write that fits the default ATT MTU.
const bleChunk = 20

var errNotBLE = errors.New("advertisement is not a BLE scan result")

// BLE is a Radio on a bluetooth adapter, talking to peers through the Nordic
// UART Service.
type BLE struct {
	adapter *bluetooth.Adapter
	clock   clockwork.Clock

	mu    sync.Mutex
	peers []*blePeer
}

// NewBLE enables adapter and returns a radio on it.
func NewBLE(adapter *bluetooth.Adapter, clock clockwork.Clock) (*BLE, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %w", err)
	}

	b := &BLE{adapter: adapter, clock: clock}
	adapter.SetConnectHandler(b.onConnect)
	return b, nil
}

func (b *BLE) onConnect(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	addr := device.Address.String()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.peers {
		if p.addr == addr {
			p.connected.Store(false)
			log.Debug().Str("address", addr).Msg("peer disconnected")
		}
	}
}

type bleAdvertisement struct {
	result bluetooth.ScanResult
}

func (a bleAdvertisement) LocalName() string {
	return a.result.LocalName()
}

// Scan runs until found accepts a result or timeout passes. The adapter picks
// its own result buffering, so bufferSize is not used.
func (b *BLE) Scan(_ int, timeout time.Duration, found func(Advertisement) bool) error {
	if timeout > 0 {
		t := b.clock.AfterFunc(timeout, func() {
			b.adapter.StopScan()
		})
		defer t.Stop()
	}

	return b.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if found(bleAdvertisement{result: result}) {
			a.StopScan()
		}
	})
}

// StopScan stops a running scan.
func (b *BLE) StopScan() error {
	return b.adapter.StopScan()
}

// Connect connects to the advertiser of adv.
func (b *BLE) Connect(adv Advertisement) (Peer, error) {
	ba, ok := adv.(bleAdvertisement)
	if !ok {
		return nil, errNotBLE
	}

	device, err := b.adapter.Connect(ba.result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}

	p := &blePeer{device: device, addr: ba.result.Address.String()}
	p.connected.Store(true)

	b.mu.Lock()
	b.peers = append(b.peers, p)
	b.mu.Unlock()

	return p, nil
}

// Peers returns the connections made by this radio that are still up.
func (b *BLE) Peers() []Peer {
	b.mu.Lock()
	defer b.mu.Unlock()

	live := b.peers[:0]
	for _, p := range b.peers {
		if p.connected.Load() {
			live = append(live, p)
		}
	}
	b.peers = live

	out := make([]Peer, len(live))
	for i, p := range live {
		out[i] = p
	}
	return out
}

// Connected reports whether any peer is connected.
func (b *BLE) Connected() bool {
	return len(b.Peers()) > 0
}

type blePeer struct {
	device    bluetooth.Device
	addr      string
	connected atomic.Bool

	once sync.Once
	uart *bleUART
}

func (p *blePeer) Connected() bool {
	return p.connected.Load()
}

// UART discovers the Nordic UART Service on first use and subscribes to its
// TX characteristic.
func (p *blePeer) UART() (Channel, bool) {
	p.once.Do(func() {
		u, err := discoverUART(p.device)
		if err != nil {
			log.Debug().Err(err).Str("address", p.addr).Msg("uart discovery")
			return
		}
		p.uart = u
	})
	if p.uart == nil {
		return nil, false
	}
	return p.uart, true
}

func (p *blePeer) Disconnect() error {
	if !p.connected.Swap(false) {
		return nil
	}
	return p.device.Disconnect()
}

type bleUART struct {
	rx bluetooth.DeviceCharacteristic
	in *Inbound
}

func discoverUART(device bluetooth.Device) (*bleUART, error) {
	srvs, err := device.DiscoverServices([]bluetooth.UUID{bluetooth.ServiceUUIDNordicUART})
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}
	if len(srvs) == 0 {
		return nil, ErrNoUART
	}

	chars, err := srvs[0].DiscoverCharacteristics([]bluetooth.UUID{
		bluetooth.CharacteristicUUIDUARTRX,
		bluetooth.CharacteristicUUIDUARTTX,
	})
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}

	var rx, tx *bluetooth.DeviceCharacteristic
	for i := range chars {
		switch chars[i].UUID() {
		case bluetooth.CharacteristicUUIDUARTRX:
			rx = &chars[i]
		case bluetooth.CharacteristicUUIDUARTTX:
			tx = &chars[i]
		}
	}
	if rx == nil || tx == nil {
		return nil, ErrNoUART
	}

	u := &bleUART{rx: *rx, in: NewInbound(DefaultInboundSize)}
	if err := tx.EnableNotifications(u.in.Push); err != nil {
		return nil, fmt.Errorf("enable notifications: %w", err)
	}
	return u, nil
}

func (u *bleUART) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), bleChunk)
		if _, err := u.rx.WriteWithoutResponse(p[:n]); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func (u *bleUART) Read(p []byte) (int, error) { return u.in.Read(p) }
func (u *bleUART) Buffered() int              { return u.in.Buffered() }
func (u *bleUART) ResetInputBuffer()          { u.in.Reset() }
