package market

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gridbot/logger"
)

// reconnectWait is the fixed backoff between connection attempts. The feed
// never gives up: this is a long-lived process and the stream is its pulse.
const reconnectWait = 5 * time.Second

// Listener receives price updates. Each invocation runs in its own goroutine
// so a slow consumer can never stall the socket read loop.
type Listener func(symbol string, price float64)

// Feed maintains a persistent websocket connection to the exchange ticker
// stream and a latest-price map per symbol.
type Feed struct {
	url    string
	params []string

	mu        sync.RWMutex
	conn      *websocket.Conn
	prices    map[string]float64
	listeners []Listener
	connected bool

	backoff   time.Duration
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFeed creates a feed for the exchange websocket base URL.
func NewFeed(wsURL string) *Feed {
	return &Feed{
		url:     wsURL + "/stream",
		params:  []string{"!ticker@arr"},
		prices:  make(map[string]float64),
		backoff: reconnectWait,
		done:    make(chan struct{}),
	}
}

// Subscribe registers a listener for every subsequent price update.
func (f *Feed) Subscribe(l Listener) {
	f.mu.Lock()
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()
}

// Last returns the most recent price observed for a symbol.
func (f *Feed) Last(symbol string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	price, ok := f.prices[symbol]
	return price, ok
}

// Snapshot returns a copy of the latest-price map.
func (f *Feed) Snapshot() map[string]float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]float64, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return out
}

// Connected reports whether the stream is currently up.
func (f *Feed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// Start launches the connect/read/reconnect loop in the background.
func (f *Feed) Start() {
	f.wg.Add(1)
	go f.run()
}

// Close terminates the read loop, interrupts any pending reconnect backoff,
// and releases the socket. Safe to call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
	})
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Feed) run() {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.Dial(f.url, nil)
		if err != nil {
			logger.Warnf("[Feed] connect failed: %v", err)
			if !f.sleep() {
				return
			}
			continue
		}

		if err := f.subscribe(conn); err != nil {
			logger.Warnf("[Feed] subscribe failed: %v", err)
			conn.Close()
			if !f.sleep() {
				return
			}
			continue
		}

		f.mu.Lock()
		f.conn = conn
		f.connected = true
		f.mu.Unlock()
		logger.WithField("url", f.url).Info("[Feed] connected")

		f.readLoop(conn)

		f.mu.Lock()
		f.connected = false
		if f.conn == conn {
			f.conn = nil
		}
		f.mu.Unlock()
		conn.Close()

		select {
		case <-f.done:
			return
		default:
			logger.Warnf("[Feed] connection lost, reconnecting in %s", f.backoff)
			if !f.sleep() {
				return
			}
		}
	}
}

// sleep waits one backoff interval; returns false when shutdown interrupted it.
func (f *Feed) sleep() bool {
	select {
	case <-f.done:
		return false
	case <-time.After(f.backoff):
		return true
	}
}

func (f *Feed) subscribe(conn *websocket.Conn) error {
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": f.params,
		"id":     time.Now().UnixMilli(),
	}
	return conn.WriteJSON(msg)
}

func (f *Feed) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
			default:
				logger.Warnf("[Feed] read failed: %v", err)
			}
			return
		}
		f.handleMessage(message)
	}
}

// handleMessage parses a ticker push. Two wire shapes are in use depending on
// the endpoint: a batch {"data":[{"s":sym,"c":last},...]} and a flat
// {"type":"ticker","market":sym,"last":px}. Anything else is ignored.
func (f *Feed) handleMessage(message []byte) {
	var batch struct {
		Data []struct {
			Symbol string     `json:"s"`
			Close  looseFloat `json:"c"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &batch); err == nil && len(batch.Data) > 0 {
		for _, t := range batch.Data {
			if t.Symbol != "" && t.Close > 0 {
				f.update(t.Symbol, float64(t.Close))
			}
		}
		return
	}

	var flat struct {
		Type   string     `json:"type"`
		Market string     `json:"market"`
		Last   looseFloat `json:"last"`
	}
	if err := json.Unmarshal(message, &flat); err == nil && flat.Type == "ticker" && flat.Market != "" && flat.Last > 0 {
		f.update(flat.Market, float64(flat.Last))
	}
}

func (f *Feed) update(symbol string, price float64) {
	f.mu.Lock()
	f.prices[symbol] = price
	listeners := f.listeners
	f.mu.Unlock()

	for _, l := range listeners {
		go l(symbol, price)
	}
}

// looseFloat decodes a JSON number that may arrive quoted or bare.
type looseFloat float64

func (v *looseFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*v = looseFloat(parsed)
		return nil
	}
	var parsed float64
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*v = looseFloat(parsed)
	return nil
}
