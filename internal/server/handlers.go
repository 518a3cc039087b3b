package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helewild/gridhud/internal/auth"
	"github.com/helewild/gridhud/internal/domain"
	"github.com/helewild/gridhud/internal/netutil"
	"github.com/helewild/gridhud/internal/registry"
)

const sigHeader = "X-Sig"

// signedEnvelope is the inline signature transport: the body itself is a
// JSON object carrying the signed payload and its signature.
type signedEnvelope struct {
	Payload json.RawMessage `json:"payload"`
	Sig     string          `json:"sig"`
}

type subjectEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	Region      string `json:"region,omitempty"`
	CallbackURL string `json:"url,omitempty"`
	FirstSeen   int64  `json:"first_seen"`
	LastSeen    int64  `json:"last_seen"`
}

// gate wraps a business operation with the admission pipeline: rate
// limit, signature verification, freshness check, in that order. The
// first failing check short-circuits to an error response. Panics in the
// business operation are converted to a generic 500 so one bad request
// cannot take the process down.
func (s *Server) gate(op string, limit int, business func(http.ResponseWriter, *http.Request, []byte) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("request handler panicked", "op", op, "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, domain.ErrorResponse{
					Error:     "internal error",
					ErrorCode: codeUpstreamUnavailable,
				})
			}
		}()

		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		now := time.Now()
		ip := netutil.ClientIP(r)

		d := s.limiter.Allow(op+":"+ip, limit)
		if !d.Allowed {
			s.log.Warn("rate limit exceeded", "op", op, "client_ip", ip, "count", d.Count, "limit", d.Limit)
			s.writeGateError(w, &domain.GateError{
				Err:        domain.ErrRateLimitExceeded,
				RetryAfter: d.RetryAfter(now),
			})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		if err != nil {
			s.log.Warn("body read failed", "op", op, "client_ip", ip, "err", err)
			s.writeGateError(w, domain.ErrMalformedPayload)
			return
		}

		raw, asserted, err := extractSigned(r, body)
		if err != nil {
			s.writeGateError(w, err)
			return
		}

		v, err := auth.Verify(s.cfg.Secret, raw, asserted)
		if err != nil {
			if errors.Is(err, domain.ErrSignatureMismatch) {
				received := strings.ToLower(strings.TrimSpace(asserted))
				s.log.Warn("signature mismatch", "op", op, "client_ip", ip, "received", received, "computed", v.Sig)
				err = &domain.GateError{
					Err:         domain.ErrSignatureMismatch,
					ReceivedSig: received,
					ComputedSig: v.Sig,
				}
			}
			s.writeGateError(w, err)
			return
		}
		if v.Variant != auth.VariantRaw {
			// Lenient matches usually mean the client's serializer and ours
			// disagree; surface them so the client side can be fixed.
			s.log.Info("signature matched lenient encoding", "op", op, "client_ip", ip, "variant", v.Variant.String())
		}

		claim, err := timestampClaim(v.Payload)
		if err != nil {
			s.writeGateError(w, err)
			return
		}
		if !auth.Fresh(claim, now, s.cfg.Tolerance) {
			s.log.Warn("stale timestamp", "op", op, "client_ip", ip, "claim", claim, "now", now.Unix())
			s.writeGateError(w, domain.ErrStaleTimestamp)
			return
		}

		if err := business(w, r, v.Payload); err != nil {
			s.writeGateError(w, err)
		}
	}
}

// extractSigned finds the asserted signature and the exact bytes it
// covers. Out-of-band transports win over the inline envelope: a header
// or query signature covers the whole body verbatim. With the envelope, a
// string payload is signed over its exact text and an object payload over
// its canonical re-serialization.
func extractSigned(r *http.Request, body []byte) ([]byte, string, error) {
	if sig := strings.TrimSpace(r.Header.Get(sigHeader)); sig != "" {
		return body, sig, nil
	}
	if sig := strings.TrimSpace(r.URL.Query().Get("sig")); sig != "" {
		return body, sig, nil
	}

	var env signedEnvelope
	if err := json.Unmarshal(body, &env); err != nil || strings.TrimSpace(env.Sig) == "" {
		return nil, "", domain.ErrMissingSignature
	}
	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 {
		return nil, "", domain.ErrMalformedPayload
	}

	switch payload[0] {
	case '"':
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return nil, "", domain.ErrMalformedPayload
		}
		return []byte(text), env.Sig, nil
	case '{', '[':
		canon, err := auth.CanonicalJSON(payload)
		if err != nil {
			return nil, "", domain.ErrMalformedPayload
		}
		return canon, env.Sig, nil
	default:
		return nil, "", domain.ErrMalformedPayload
	}
}

// timestampClaim pulls the freshness claim out of the trusted payload. A
// payload that is not a JSON object is malformed; an object without a
// usable integer claim gets no grace and is treated as stale.
func timestampClaim(payload []byte) (int64, error) {
	var probe struct {
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0, domain.ErrMalformedPayload
	}
	var claim *int64
	if err := json.Unmarshal(probe.Timestamp, &claim); err != nil || claim == nil {
		return 0, domain.ErrStaleTimestamp
	}
	return *claim, nil
}

func (s *Server) registerOp(w http.ResponseWriter, r *http.Request, payload []byte) error {
	var req domain.RegisterPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return domain.ErrMalformedPayload
	}
	id := strings.TrimSpace(req.AvatarID)
	if id == "" {
		return domain.ErrMalformedPayload
	}

	now := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	subj, err := s.store.Upsert(ctx, domain.Registration{
		ID:          id,
		Name:        strings.TrimSpace(req.AvatarName),
		Region:      strings.TrimSpace(req.Region),
		CallbackURL: strings.TrimSpace(req.CallbackURL),
	}, now)
	if err != nil {
		s.log.Error("register upsert failed", "avatar_id", id, "err", err)
		return domain.ErrStoreUnavailable
	}

	s.log.Info("avatar registered", "avatar_id", subj.ID, "name", subj.Name, "affiliation", subj.Affiliation, "region", subj.Region)
	s.broadcast(event{
		Kind:        "register",
		AvatarID:    subj.ID,
		Name:        subj.Name,
		Affiliation: subj.Affiliation,
		Time:        now.UTC().Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, domain.RegisterResponse{
		OK:          true,
		Who:         subj.Name,
		Affiliation: subj.Affiliation,
		ServerTime:  now.UTC().Format(time.RFC3339),
	})
	return nil
}

func (s *Server) scanOp(w http.ResponseWriter, r *http.Request, payload []byte) error {
	var req domain.ScanPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return domain.ErrMalformedPayload
	}

	// Anything that is not an array of strings scans as empty rather
	// than failing the whole request.
	var ids []string
	if len(req.IDs) > 0 {
		if err := json.Unmarshal(req.IDs, &ids); err != nil {
			ids = nil
		}
	}
	ids = registry.CapIDs(ids, s.cfg.MaxScanIDs)

	now := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	results, err := s.store.Lookup(ctx, ids, now)
	if err != nil {
		s.log.Error("scan lookup failed", "ids", len(ids), "err", err)
		return domain.ErrStoreUnavailable
	}

	entries := make([]domain.ScanEntry, len(results))
	for i, res := range results {
		entries[i] = domain.ScanEntry{
			ID:          res.ID,
			Name:        res.Name,
			Affiliation: res.Affiliation,
			Days:        res.Days,
		}
	}

	s.broadcast(event{Kind: "scan", Count: len(ids), Time: now.UTC().Format(time.RFC3339)})
	writeJSON(w, http.StatusOK, domain.ScanResponse{OK: true, Results: entries})
	return nil
}

// adminAuthorized guards the operator endpoints with the static admin
// key, supplied via header or query parameter. This is deliberately not
// the signature scheme. With no key configured the endpoints do not
// exist.
func (s *Server) adminAuthorized(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.AdminKey == "" {
		http.NotFound(w, r)
		return false
	}
	key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
	if key == "" {
		key = strings.TrimSpace(r.URL.Query().Get("key"))
	}
	if !auth.ConstantTimeEquals(key, s.cfg.AdminKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.adminAuthorized(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	subjects, err := s.store.List(ctx)
	if err != nil {
		s.log.Error("subject listing failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		entries := make([]subjectEntry, len(subjects))
		for i, sub := range subjects {
			entries[i] = subjectEntry{
				ID:          sub.ID,
				Name:        sub.Name,
				Affiliation: sub.Affiliation,
				Region:      sub.Region,
				CallbackURL: sub.CallbackURL,
				FirstSeen:   sub.FirstSeen,
				LastSeen:    sub.LastSeen,
			}
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, sub := range subjects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sub.ID, sub.Name, sub.Affiliation, sub.CallbackURL)
	}
}
