// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gogama/s3x/credentials"
	"github.com/gogama/s3x/request"
	"github.com/rs/zerolog"
)

// Scheme is the authentication scheme written into the Authorization
// header.
const Scheme = "AWS"

const (
	amzPrefix     = "x-amz-"
	amzDate       = "x-amz-date"
	securityToken = "x-amz-security-token"
)

// A Signer adds authentication to a request.
//
// The client calls Sign once per attempt, after restoring the request's
// headers and parameters, so a signature is never carried from one
// attempt to the next.
//
// Implementations of Signer must be safe for concurrent use by multiple
// goroutines.
type Signer interface {
	// Sign adds authentication headers to r using c. If c is nil or has
	// no secret key, Sign leaves r unsigned and returns nil.
	Sign(r *request.Request, c *credentials.Credentials) error
}

// An S3Signer signs requests with the S3 HMAC-SHA1 scheme: the
// Authorization header is "AWS <AccessKeyID>:<Signature>", where the
// signature is the base64 HMAC-SHA1 of the canonical string.
//
// The zero value is ready to use.
type S3Signer struct {
	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time

	// Logger receives the string to sign at debug level. If nil,
	// nothing is logged.
	Logger *zerolog.Logger
}

// Sign sets the Date and Authorization headers of r, and the
// security token header if c is a set of session credentials.
func (s *S3Signer) Sign(r *request.Request, c *credentials.Credentials) error {
	if c == nil || c.SecretAccessKey == "" {
		if s.Logger != nil {
			s.Logger.Debug().Msg("no secret key, request will not be signed")
		}
		return nil
	}
	akid := strings.TrimSpace(c.AccessKeyID)
	secret := strings.TrimSpace(c.SecretAccessKey)
	if token := strings.TrimSpace(c.SessionToken); token != "" {
		r.SetHeader(securityToken, token)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	date := now().Add(-r.TimeOffset).UTC().Format(http.TimeFormat)
	r.SetHeader("Date", date)

	sts := CanonicalString(r)
	if s.Logger != nil {
		s.Logger.Debug().Str("string_to_sign", sts).Msg("calculated string to sign")
	}
	r.SetHeader("Authorization", Scheme+" "+akid+":"+Sign(sts, secret))
	return nil
}

// Sign returns the base64-encoded HMAC-SHA1 of data keyed with secret.
func Sign(data, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// CanonicalString returns the string S3 expects to be signed for r.
//
// It is made of the method, the Content-MD5, Content-Type and Date
// headers (empty when absent), the x-amz- headers and parameters
// sorted by lowercased name with duplicate names merged by comma, and
// the resource path followed by the signed sub-resources. When the
// request has an x-amz-date header, the Date slot is empty.
func CanonicalString(r *request.Request) string {
	interesting := make(map[string]string)
	for k, v := range r.Header {
		lk := strings.ToLower(k)
		if lk == "content-type" || lk == "content-md5" || lk == "date" || strings.HasPrefix(lk, amzPrefix) {
			merge(interesting, lk, strings.TrimSpace(v))
		}
	}
	for k, v := range r.Params {
		if strings.HasPrefix(k, amzPrefix) {
			merge(interesting, strings.ToLower(k), v)
		}
	}
	if _, ok := interesting[amzDate]; ok {
		interesting["date"] = ""
	}
	if _, ok := interesting["content-type"]; !ok {
		interesting["content-type"] = ""
	}
	if _, ok := interesting["content-md5"]; !ok {
		interesting["content-md5"] = ""
	}

	keys := make([]string, 0, len(interesting))
	for k := range interesting {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte('\n')
	for _, k := range keys {
		if strings.HasPrefix(k, amzPrefix) {
			b.WriteString(k)
			b.WriteByte(':')
		}
		b.WriteString(interesting[k])
		b.WriteByte('\n')
	}
	b.WriteString(r.EscapedResourcePath())
	writeSubResources(&b, r.Params)
	return b.String()
}

// merge adds v under k, joining it to any earlier value with a comma.
// Map iteration order is random, so values are kept sorted to make the
// result deterministic.
func merge(m map[string]string, k, v string) {
	if old, ok := m[k]; ok {
		vs := append(strings.Split(old, ","), v)
		sort.Strings(vs)
		m[k] = strings.Join(vs, ",")
		return
	}
	m[k] = v
}

func writeSubResources(b *strings.Builder, params map[string]string) {
	names := make([]string, 0, len(params))
	for k := range params {
		if IsSignedParameter(k) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	for i, k := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(k)
		if v := params[k]; v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
}

var signedParameters = map[string]bool{
	"acl":                          true,
	"cors":                         true,
	"delete":                       true,
	"lifecycle":                    true,
	"location":                     true,
	"logging":                      true,
	"notification":                 true,
	"partNumber":                   true,
	"policy":                       true,
	"requestPayment":               true,
	"response-cache-control":       true,
	"response-content-disposition": true,
	"response-content-encoding":    true,
	"response-content-language":    true,
	"response-content-type":        true,
	"response-expires":             true,
	"restore":                      true,
	"tagging":                      true,
	"torrent":                      true,
	"uploadId":                     true,
	"uploads":                      true,
	"versionId":                    true,
	"versioning":                   true,
	"versions":                     true,
	"website":                      true,
}

// IsSignedParameter reports whether the query parameter name is a
// sub-resource that takes part in the signature.
func IsSignedParameter(name string) bool {
	return signedParameters[name]
}
