// middleware.go - Host-Pruefung fuer den HTTP-Router
// Enthaelt: loopbackOnly(), localHostname(), localAddr(), allowedHostsMiddleware()

package server

import (
	"net"
	"net/http"
	"net/netip"
	"os"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// localSuffixes sind Namen, die nie aus dem oeffentlichen DNS aufloesen
var localSuffixes = []string{".localhost", ".local", ".internal"}

// loopbackOnly meldet, ob der Server nur auf Loopback lauscht
func loopbackOnly(addr net.Addr) bool {
	if addr == nil {
		return false
	}
	ap, err := netip.ParseAddrPort(addr.String())
	return err == nil && ap.Addr().IsLoopback()
}

// localAddr prueft, ob ip diese Maschine bezeichnet
func localAddr(ip netip.Addr) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return false
	}
	return slices.ContainsFunc(addrs, func(a net.Addr) bool {
		prefix, err := netip.ParsePrefix(a.String())
		return err == nil && prefix.Addr().Unmap() == ip.Unmap()
	})
}

// localHostname prueft Host-Namen ohne IP
func localHostname(host string) bool {
	host = strings.ToLower(host)
	if host == "" || host == "localhost" {
		return true
	}
	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}
	return slices.ContainsFunc(localSuffixes, func(suffix string) bool {
		return strings.HasSuffix(host, suffix)
	})
}

// allowedHostsMiddleware weist fremde Host-Header ab, solange der Server
// nur auf Loopback lauscht (DNS-Rebinding)
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	guarded := loopbackOnly(addr)

	return func(c *gin.Context) {
		if !guarded {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if ip, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
			if localAddr(ip) {
				c.Next()
				return
			}
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		if !localHostname(host) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
