package mailbox

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// NewHTTPClient создаёт HTTP-клиент к Zimbra.
// caCertPath — путь к CA-сертификату (пустая строка — системный пул).
func NewHTTPClient(caCertPath string) (*http.Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if caCertPath == "" {
		return httpClient, nil
	}

	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата Zimbra: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("CA-сертификат Zimbra %s не содержит PEM-блоков", caCertPath)
	}

	httpClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
	}
	return httpClient, nil
}
