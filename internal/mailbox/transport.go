package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseSize — ограничение размера ответа Zimbra.
const maxResponseSize = 32 << 20

// transport выполняет один HTTP-обмен конвертами с Zimbra.
type transport struct {
	httpClient *http.Client
}

// call отправляет конверт на url и возвращает содержимое Body.<Op>Response.
// Ответ не-200 разбирается как Fault; если разобрать не удалось —
// возвращается RemoteError со строкой статуса.
func (t *transport) call(ctx context.Context, url, operation string, env envelope) (json.RawMessage, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("сериализация %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s к Zimbra: %w", operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("чтение ответа %s: %w", operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeFault(resp, data)
	}

	var out responseEnvelope
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, operation, err)
	}
	body, ok := out.Body[responseName(operation)]
	if !ok {
		// Zimbra может вернуть Fault и со статусом 200
		if raw, isFault := out.Body["Fault"]; isFault {
			return nil, faultToError(resp.StatusCode, raw, resp.Status)
		}
		return nil, fmt.Errorf("%w: в ответе нет %s", ErrMalformedResponse, responseName(operation))
	}
	return body, nil
}

func decodeFault(resp *http.Response, data []byte) error {
	var out responseEnvelope
	if err := json.Unmarshal(data, &out); err != nil {
		return &RemoteError{Status: resp.StatusCode, Message: resp.Status}
	}
	raw, ok := out.Body["Fault"]
	if !ok {
		return &RemoteError{Status: resp.StatusCode, Message: resp.Status}
	}
	return faultToError(resp.StatusCode, raw, resp.Status)
}

func faultToError(status int, raw json.RawMessage, statusLine string) error {
	var f faultBody
	if err := json.Unmarshal(raw, &f); err != nil || f.Detail.Error.Code == "" {
		return &RemoteError{Status: status, Message: statusLine}
	}
	return &RemoteError{Status: status, Code: f.Detail.Error.Code, Message: f.Reason.Text}
}
