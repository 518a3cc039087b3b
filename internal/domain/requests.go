package domain

import "encoding/json"

// RegisterPayload is the JSON body a device signs and submits to register
// itself (directly, or as the payload member of a signed envelope).
type RegisterPayload struct {
	AvatarID    string `json:"avatar_id"`
	AvatarName  string `json:"avatar_name,omitempty"`
	Timestamp   *int64 `json:"timestamp"`
	Region      string `json:"region,omitempty"`
	CallbackURL string `json:"url,omitempty"`
}

// ScanPayload is the JSON body of a bulk-lookup request. IDs stays raw
// until the handler has decided what it holds: device serializers
// sometimes emit it as a string or object, and those scan as empty
// rather than failing the request.
type ScanPayload struct {
	IDs       json.RawMessage `json:"ids"`
	Timestamp *int64          `json:"timestamp"`
}

// RegisterResponse is the JSON body returned on successful registration.
type RegisterResponse struct {
	OK          bool   `json:"ok"`
	Who         string `json:"who"`
	Affiliation string `json:"affiliation,omitempty"`
	ServerTime  string `json:"server_time"`
}

// ScanResponse is the JSON body returned for a bulk lookup; Results
// preserves the order of the submitted ids.
type ScanResponse struct {
	OK      bool        `json:"ok"`
	Results []ScanEntry `json:"results"`
}

// ScanEntry is the wire form of one [ScanResult].
type ScanEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	Days        int64  `json:"days"`
}

// ErrorResponse is the JSON body returned for structured rejections. Sig
// fields carry the received and server-computed signature prefixes for
// client-side debugging; they never expose the secret.
type ErrorResponse struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
	ErrorCode   string `json:"error_code,omitempty"`
	ReceivedSig string `json:"received_sig,omitempty"`
	ComputedSig string `json:"computed_sig,omitempty"`
	RetryAfter  int64  `json:"retry_after,omitempty"`
}
