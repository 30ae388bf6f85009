package nats

import (
	"os"
	"sync"

	natsgo "github.com/nats-io/nats.go"
)

const clientName = "ctrlloop"

type closeFunc = func()

// Connector opens (or leases) a NATS connection. The returned close func
// releases it.
type Connector func() (nc *natsgo.Conn, close closeFunc, err error)

// ReuseConnection shares one connection between all callers of the returned
// Connector. The connection is closed when the last lease is released and
// reopened on the next call.
func ReuseConnection(connect Connector) Connector {
	var (
		mu       sync.Mutex
		nc       *natsgo.Conn
		closeCon closeFunc
		leased   int
	)
	release := func() {
		mu.Lock()
		defer mu.Unlock()
		leased--
		if leased == 0 && nc != nil {
			closeCon()
			nc = nil
		}
	}
	return func() (*natsgo.Conn, closeFunc, error) {
		mu.Lock()
		defer mu.Unlock()
		if nc == nil {
			c, cl, err := connect()
			if err != nil {
				return nil, nil, err
			}
			nc, closeCon = c, cl
		}
		leased++
		var once sync.Once
		return nc, func() { once.Do(release) }, nil
	}
}

func ConnectURL(natsURL string, opts ...natsgo.Option) Connector {
	return func() (*natsgo.Conn, closeFunc, error) {
		nc, err := natsgo.Connect(
			natsURL,
			append([]natsgo.Option{
				natsgo.Name(clientName),
				natsgo.MaxReconnects(3),
			}, opts...)...,
		)
		if err != nil {
			return nil, nil, err
		}
		return nc, func() { nc.Close() }, nil
	}
}

// ConnectDefault connects to $NATS_URL, or the NATS default URL.
func ConnectDefault() Connector {
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		return ConnectURL(natsURL)
	}
	return ConnectURL(natsgo.DefaultURL)
}
