// Package ipchecker restricts handlers to clients from a trusted subnet.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/profilesite/internal/logger"
)

// IPChecker matches client addresses against a trusted subnet. Without a
// subnet every client is allowed.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New parses trustedSubnet in CIDR notation, e.g. "10.0.0.0/8". An empty
// string disables the check.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{}, nil
	}

	_, subnet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}

	return &IPChecker{trustedSubnet: subnet}, nil
}

// IsDisabled reports whether no trusted subnet is configured.
func (checker *IPChecker) IsDisabled() bool {
	return checker.trustedSubnet == nil
}

// Check reports whether clientIP may pass.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	if checker.IsDisabled() {
		return true
	}

	return clientIP != nil && checker.trustedSubnet.Contains(clientIP)
}

// ClientIP takes the address from X-Real-IP, then the first X-Forwarded-For
// entry, then RemoteAddr.
func ClientIP(request *http.Request) (net.IP, error) {
	if ip := net.ParseIP(request.Header.Get("X-Real-IP")); ip != nil {
		return ip, nil
	}

	if forwardedFor := request.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip, nil
		}
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/ClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}

	return net.ParseIP(host), nil
}

// Allow responds 403 to clients outside the trusted subnet.
func (checker *IPChecker) Allow(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		if checker.IsDisabled() {
			h.ServeHTTP(response, request)
			return
		}

		clientIP, err := ClientIP(request)
		if err != nil {
			logger.Log.Infoln("Error calling the `ClientIP()`:", zap.Error(err))
		}
		if err != nil || !checker.Check(clientIP) {
			http.Error(response, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		h.ServeHTTP(response, request)
	})
}
