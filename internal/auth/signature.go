// Package auth implements the shared-secret request signature scheme: a
// short md5-prefix digest over secret, ":" and body, verified against a
// bounded set of candidate encodings of the same logical payload.
package auth

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"

	"github.com/helewild/gridhud/internal/domain"
)

// SigLen is the fixed signature width in lowercase hex characters. The
// 2^32 space is an accepted tradeoff: the scripted client runtime can only
// compute md5(src + ":" + nonce) on-device, and replay windows plus rate
// limiting bound what the short digest gives up.
const SigLen = 8

// Variant identifies which candidate encoding of the payload matched.
type Variant int

const (
	VariantNone Variant = iota
	VariantRaw
	VariantCanonical
	VariantUnescapedSlash
	VariantLF
	VariantTrailingNewline
)

func (v Variant) String() string {
	switch v {
	case VariantRaw:
		return "raw"
	case VariantCanonical:
		return "canonical"
	case VariantUnescapedSlash:
		return "unescaped_slash"
	case VariantLF:
		return "lf"
	case VariantTrailingNewline:
		return "trailing_newline"
	default:
		return "none"
	}
}

// Verification is the outcome of a successful [Verify]: the variant that
// matched, the digest it produced, and the exact candidate bytes. Callers
// must parse Payload, not the received bytes, as the trusted payload.
type Verification struct {
	Variant Variant
	Sig     string
	Payload []byte
}

// Signature computes the lowercase hex digest prefix over secret, a ":"
// separator, and the exact body bytes.
func Signature(secret string, body []byte) string {
	h := md5.New()
	_, _ = io.WriteString(h, secret)
	_, _ = io.WriteString(h, ":")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))[:SigLen]
}

// Verify checks the asserted signature against the fixed candidate
// encodings of raw, in order, stopping at the first match. The asserted
// value is trimmed and lower-cased first. On mismatch the returned
// Verification carries the digest computed over the raw bytes so callers
// can echo it for client-side debugging.
func Verify(secret string, raw []byte, asserted string) (Verification, error) {
	asserted = strings.ToLower(strings.TrimSpace(asserted))
	if asserted == "" {
		return Verification{}, domain.ErrMissingSignature
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Verification{}, domain.ErrMalformedPayload
	}

	for _, c := range candidates(raw) {
		sig := Signature(secret, c.body)
		if ConstantTimeEquals(sig, asserted) {
			return Verification{Variant: c.variant, Sig: sig, Payload: c.body}, nil
		}
	}
	return Verification{Variant: VariantNone, Sig: Signature(secret, raw)}, domain.ErrSignatureMismatch
}

type candidate struct {
	variant Variant
	body    []byte
}

// candidates enumerates the accepted encodings of raw, in match priority:
// exact bytes, canonical JSON re-serialization, then three byte rewrites
// covering known client runtime string quirks (escaped slashes, CRLF line
// endings, trailing newline presence). The list is closed. Duplicates of
// an earlier candidate are skipped so each digest is computed once.
func candidates(raw []byte) []candidate {
	out := make([]candidate, 0, 5)
	seen := make(map[string]struct{}, 5)
	add := func(v Variant, body []byte) {
		if _, dup := seen[string(body)]; dup {
			return
		}
		seen[string(body)] = struct{}{}
		out = append(out, candidate{variant: v, body: body})
	}

	add(VariantRaw, raw)
	if canon, err := CanonicalJSON(raw); err == nil {
		add(VariantCanonical, canon)
	}
	add(VariantUnescapedSlash, bytes.ReplaceAll(raw, []byte(`\/`), []byte(`/`)))
	add(VariantLF, bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n")))
	if n := len(raw); raw[n-1] == '\n' {
		add(VariantTrailingNewline, raw[:n-1])
	} else {
		withNL := make([]byte, n+1)
		copy(withNL, raw)
		withNL[n] = '\n'
		add(VariantTrailingNewline, withNL)
	}
	return out
}

// ConstantTimeEquals compares two short credential strings in constant time.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateSecret returns a cryptographically random, URL-safe shared secret.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
