package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// webhook署名（HMAC-SHA512 hex）の検証。比較は定数時間。
func (c *Client) VerifySignature(body []byte, signature string) bool {
	return VerifySignature(c.secret, body, signature)
}

func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(computed), []byte(signature))
}

// webhook送信側と同じ方式で署名を作る（テスト用にも使う）
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
