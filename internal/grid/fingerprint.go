package grid

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DomainOrder separates sampling-order fingerprints from any other hash.
const DomainOrder = "gridmaker/order/v1"

// Fingerprint returns a stable content hash of the sampling order: dimension
// names (NFC normalised) and values in position order. Two shards can be
// merged only when their fingerprints match.
func (o Order) Fingerprint() string {
	return hashWithDomain(DomainOrder, o.canonical())
}

// canonical writes {"dimensions":[{"name":...,"values":[...]},...]} with keys
// in sorted order and values in their shortest round-trip decimal form.
func (o Order) canonical() []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"dimensions":[`)
	for i, d := range o.dims {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"name":`)
		buf.Write(canonicalString(d.Name))
		buf.WriteString(`,"values":[`)
		for j, v := range d.Values {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		buf.WriteString(`]}`)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

// canonicalString encodes s as a JSON string after NFC normalisation, without
// HTML escaping.
func canonicalString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(norm.NFC.String(s))
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
