package xapi

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// oauth1Signer signs requests with OAuth 1.0a HMAC-SHA1, which the X v1.1
// media endpoint still requires. The corpus carries no OAuth1 library, so
// signing is implemented against RFC 5849 directly.
type oauth1Signer struct {
	consumerKey    string
	consumerSecret string
	token          string
	tokenSecret    string
}

// sign sets the Authorization header on req. extraParams holds any
// form-encoded body parameters that participate in the signature base
// string; multipart bodies contribute nothing.
func (s oauth1Signer) sign(req *http.Request, extraParams url.Values) {
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            strings.ReplaceAll(uuid.NewString(), "-", ""),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        fmt.Sprintf("%d", time.Now().Unix()),
		"oauth_token":            s.token,
		"oauth_version":          "1.0",
	}

	oauthParams["oauth_signature"] = s.signature(req, oauthParams, extraParams)

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var header strings.Builder
	header.WriteString("OAuth ")
	for i, k := range keys {
		if i > 0 {
			header.WriteString(", ")
		}
		header.WriteString(fmt.Sprintf(`%s="%s"`, percentEncode(k), percentEncode(oauthParams[k])))
	}
	req.Header.Set("Authorization", header.String())
}

func (s oauth1Signer) signature(req *http.Request, oauthParams map[string]string, extraParams url.Values) string {
	// Collect oauth, query and body parameters.
	params := url.Values{}
	for k, v := range oauthParams {
		params.Set(k, v)
	}
	for k, vs := range req.URL.Query() {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	for k, vs := range extraParams {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	baseString := strings.Join([]string{
		req.Method,
		percentEncode(baseURI(req.URL)),
		percentEncode(normalizeParams(params)),
	}, "&")

	signingKey := percentEncode(s.consumerSecret) + "&" + percentEncode(s.tokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func baseURI(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

func normalizeParams(params url.Values) string {
	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// percentEncode implements RFC 3986 encoding as OAuth1 requires (stricter
// than url.QueryEscape: spaces become %20, and ~ stays literal).
func percentEncode(s string) string {
	var out strings.Builder
	for _, b := range []byte(s) {
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') ||
			(b >= '0' && b <= '9') || b == '-' || b == '.' || b == '_' || b == '~' {
			out.WriteByte(b)
		} else {
			out.WriteString(fmt.Sprintf("%%%02X", b))
		}
	}
	return out.String()
}
