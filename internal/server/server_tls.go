package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"strings"
)

const (
	tlsModeOff    = "off"
	tlsModeAuto   = "auto"
	tlsModeStatic = "static"
)

func normalizeTLSMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return tlsModeOff
	}
	return mode
}

type staticCertificate struct {
	cert tls.Certificate
	leaf *x509.Certificate
}

func loadStaticCertificate(certFile, keyFile string) (*staticCertificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS certificate: %w", err)
	}
	var leaf *x509.Certificate
	if len(cert.Certificate) > 0 {
		leaf, _ = x509.ParseCertificate(cert.Certificate[0])
	}
	return &staticCertificate{cert: cert, leaf: leaf}, nil
}

func (c *staticCertificate) subject() string {
	if c == nil || c.leaf == nil {
		return ""
	}
	return c.leaf.Subject.String()
}

// tlsErrorLogWriter routes the HTTPS server's error log into slog and
// demotes handshake noise from internet scanners to debug level.
type tlsErrorLogWriter struct {
	log *slog.Logger
}

func newTLSErrorLogWriter(logger *slog.Logger) *tlsErrorLogWriter {
	return &tlsErrorLogWriter{log: logger}
}

func (w *tlsErrorLogWriter) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if line == "" {
		return len(p), nil
	}

	const marker = "TLS handshake error from "
	idx := strings.Index(line, marker)
	if idx < 0 {
		w.log.Warn("https server error", "err", line)
		return len(p), nil
	}

	payload := line[idx+len(marker):]
	addr, reason, ok := strings.Cut(payload, ": ")
	if !ok {
		w.log.Debug("tls handshake dropped", "detail", payload)
		return len(p), nil
	}
	reason = strings.TrimSpace(reason)
	if isLikelyScannerTLSReason(reason) {
		w.log.Debug("tls handshake rejected", "remote_addr", strings.TrimSpace(addr), "reason", reason)
		return len(p), nil
	}
	w.log.Warn("tls handshake failed", "remote_addr", strings.TrimSpace(addr), "reason", reason)
	return len(p), nil
}

func isLikelyScannerTLSReason(reason string) bool {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		return false
	}
	return reason == "eof" ||
		strings.Contains(reason, "missing server name") ||
		strings.Contains(reason, "unsupported application protocols") ||
		strings.Contains(reason, "offered only unsupported versions") ||
		strings.Contains(reason, "no cipher suite supported by both client and server") ||
		strings.Contains(reason, "host not allowed") ||
		strings.Contains(reason, "connection reset by peer") ||
		strings.Contains(reason, "i/o timeout") ||
		strings.Contains(reason, "first record does not look like a tls handshake") ||
		strings.Contains(reason, "http request to an https server")
}
