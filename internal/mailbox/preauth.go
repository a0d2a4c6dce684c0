package mailbox

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // алгоритм preauth задан протоколом Zimbra
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ComputePreauth вычисляет preauth-значение Zimbra:
// hex(HMAC-SHA1(key, account|[1|]name|0|timestamp)), timestamp — миллисекунды epoch.
func ComputePreauth(key, account string, asAdmin bool, timestamp int64) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: пустой ключ", ErrPreauth)
	}
	if account == "" {
		return "", fmt.Errorf("%w: пустое имя учётной записи", ErrPreauth)
	}
	if timestamp <= 0 {
		return "", fmt.Errorf("%w: некорректный timestamp %d", ErrPreauth, timestamp)
	}

	parts := []string{account}
	if asAdmin {
		parts = append(parts, "1")
	}
	parts = append(parts, "name", "0", strconv.FormatInt(timestamp, 10))

	mac := hmac.New(sha1.New, []byte(key))
	if _, err := mac.Write([]byte(strings.Join(parts, "|"))); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPreauth, err)
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}
