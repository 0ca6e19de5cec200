package signature

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Encoding maps a raw key or value to its canonical form.
type Encoding func(string) string

// Gateways compute their checksum over JavaScript's encodeURIComponent
// output, which leaves these five marks alone.
var unescapeMarks = strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

var (
	// QueryEncoding is form-style percent-encoding: space becomes "+",
	// A-Z a-z 0-9 and "-_.~!*'()" are kept, every other byte is %XX.
	QueryEncoding Encoding = func(s string) string { return unescapeMarks.Replace(url.QueryEscape(s)) }

	// RawEncoding leaves keys and values untouched.
	RawEncoding Encoding = func(s string) string { return s }
)

// Params is a flat bag of gateway parameters. Iteration order of the
// underlying map never leaks out: every rendering goes through Canonical.
type Params map[string]string

func (p Params) Set(key, value string) {
	p[key] = value
}

func (p Params) SetInt(key string, value int64) {
	p[key] = strconv.FormatInt(value, 10)
}

func (p Params) Get(key string) string {
	return p[key]
}

// Without returns a copy of p with the given keys removed.
func (p Params) Without(keys ...string) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Canonical encodes every key and value with enc, sorts the pairs by encoded
// key byte-wise and joins them as key=value with "&".
func (p Params) Canonical(enc Encoding) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, pair{k: enc(k), v: enc(v)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv.k)
		b.WriteByte('=')
		b.WriteString(kv.v)
	}
	return b.String()
}

// FromValues flattens url.Values, keeping the first value of each key.
func FromValues(values url.Values) Params {
	p := make(Params, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			p[k] = vs[0]
		}
	}
	return p
}
