package dashboard

import (
	"encoding/json"
	"fmt"
)

// fingerprintBytes computes the 32-bit djb2-XOR rolling hash used as an
// opaque ETag token: seed 5381, per byte hash = ((hash << 5) + hash) ^ b.
func fingerprintBytes(data []byte) string {
	var hash uint32 = 5381
	for _, b := range data {
		hash = ((hash << 5) + hash) ^ uint32(b)
	}
	return fmt.Sprintf("%08x", hash)
}

// fingerprinter is implemented by payloads that can strip their generation
// timestamp, so identical underlying data always hashes identically no
// matter when it was composed.
type fingerprinter interface {
	withoutGeneratedAt() any
}

// Fingerprint serializes the payload minus its generation timestamp and
// hashes the result.
func Fingerprint(payload fingerprinter) string {
	data, err := json.Marshal(payload.withoutGeneratedAt())
	if err != nil {
		// Payloads are plain data structs; marshal cannot realistically
		// fail. An empty token disables conditional responses only.
		return ""
	}
	return fingerprintBytes(data)
}
