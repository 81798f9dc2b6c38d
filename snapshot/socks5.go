// ABOUTME: SSH+SOCKS5 dialer for reaching an isolated BOSH director/CF API
// ABOUTME: Parses a BOSH_ALL_PROXY-style ssh+socks5:// URL into a lazily built, cached dialer

package snapshot

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	proxy "github.com/cloudfoundry/socks5-proxy"
)

// socks5DialContext builds a DialContext func that tunnels through an
// SSH+SOCKS5 proxy described by allProxy (format
// "ssh+socks5://user@host:port?private-key=/path/to/key"), the same
// BOSH_ALL_PROXY / CF_SOCKS_PROXY convention BOSH and CF operators use to
// reach a director or API sitting behind a jumpbox. Returns nil if
// allProxy can't be parsed, in which case the caller should fall back to a
// direct dial.
func socks5DialContext(allProxy string) func(ctx context.Context, network, address string) (net.Conn, error) {
	allProxy = strings.TrimPrefix(allProxy, "ssh+")

	proxyURL, err := url.Parse(allProxy)
	if err != nil {
		return nil
	}
	queryMap, err := url.ParseQuery(proxyURL.RawQuery)
	if err != nil {
		return nil
	}

	username := ""
	if proxyURL.User != nil {
		username = proxyURL.User.Username()
	}

	keyPath := queryMap.Get("private-key")
	if keyPath == "" {
		return nil
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil
	}

	socksProxy := proxy.NewSocks5Proxy(proxy.NewHostKey(), log.Default(), time.Minute)

	var (
		dialer proxy.DialFunc
		mu     sync.RWMutex
	)

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mu.RLock()
		d := dialer
		mu.RUnlock()
		if d != nil {
			return d(network, address)
		}

		mu.Lock()
		defer mu.Unlock()
		if dialer == nil {
			built, err := socksProxy.Dialer(username, string(key), proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("socks5 dialer: %w", err)
			}
			dialer = built
		}
		return dialer(network, address)
	}
}
