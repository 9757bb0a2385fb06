package signature

import (
	"net/url"
	"sort"
	"strings"
)

// SignatureParam is the query parameter carrying the hex digest on proxy
// and OAuth callback requests.
const SignatureParam = "signature"

// CanonicalQuery builds the message a proxy signature is computed over:
// every parameter except the signature itself, sorted by key ascending,
// rendered as key=value with no separator between pairs. Repeated keys
// contribute their values joined by commas, matching Shopify's convention.
func CanonicalQuery(params url.Values) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignatureParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
	}
	return []byte(b.String())
}

// VerifyQuery authenticates a signed query string. The signature parameter
// is extracted, the canonical message recomputed from the remaining
// parameters, and the digests compared in constant time. Tenant identity
// must be read from a signed parameter afterwards, never from an unsigned
// source.
func (e *Engine) VerifyQuery(params url.Values) bool {
	supplied := params.Get(SignatureParam)
	if supplied == "" {
		return false
	}
	return e.VerifyHex(CanonicalQuery(params), supplied)
}
