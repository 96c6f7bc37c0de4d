package gateway

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const contentTypeJSON = "application/json;charset=UTF-8"

// signer builds the OPA hmac Authorization header for one request.
type signer struct {
	apiKey string
	secret []byte
}

func (s signer) authorization(method, path string, body []byte, nonce string, epoch int64) string {
	contentType := "empty"
	payloadHash := "empty"
	if len(body) > 0 {
		contentType = contentTypeJSON
		h := md5.New()
		h.Write([]byte(contentType))
		h.Write(body)
		payloadHash = base64.StdEncoding.EncodeToString(h.Sum(nil))
	}

	// path without query string
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	toSign := strings.Join([]string{
		path,
		method,
		nonce,
		fmt.Sprintf("%d", epoch),
		contentType,
		payloadHash,
	}, "\n")

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(toSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("hmac OPA-Auth:%s:%s:%s:%d:%s", s.apiKey, signature, nonce, epoch, payloadHash)
}
