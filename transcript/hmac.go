package transcript

import (
	"crypto/hmac"
	"crypto/subtle"
)

func hmacSum(alg HashAlgorithm, key, data []byte) []byte {
	mac := hmac.New(alg.new, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
