// client.go — выполнение именованных SOAP-операций Zimbra с авторизацией
// и однократным повтором после повторной аутентификации.
package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// AccountProvisioner создаёт отсутствующую учётную запись субъекта.
// Реализуется сервисом сверки учётных записей.
type AccountProvisioner interface {
	ProvisionAccount(ctx context.Context, principalID string) error
}

// Request — именованная операция Zimbra.
type Request struct {
	// Operation — имя элемента запроса, например CreateAccountRequest
	Operation string
	Namespace string
	Payload   map[string]any
	// Principal — субъект, от имени которого выполняется операция (игнорируется при AsAdmin)
	Principal model.Principal
	AsAdmin   bool
}

// Client — шлюз SOAP-операций Zimbra.
type Client struct {
	userURL     string
	adminURL    string
	auth        *Authenticator
	transport   *transport
	provisioner AccountProvisioner
	logger      *slog.Logger
}

// NewClient создаёт клиент Zimbra.
func NewClient(userURL, adminURL string, auth *Authenticator, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		userURL:   userURL,
		adminURL:  adminURL,
		auth:      auth,
		transport: &transport{httpClient: httpClient},
		logger:    logger.With(slog.String("component", "zimbra_client")),
	}
}

// SetAccountProvisioner задаёт создание учётных записей при account.AUTH_FAILED.
// Без него ошибка аутентификации возвращается как есть.
func (c *Client) SetAccountProvisioner(p AccountProvisioner) {
	c.provisioner = p
}

// Invoke выполняет операцию и возвращает содержимое элемента ответа.
//
// Повтор выполняется не более одного раза:
//   - service.AUTH_REQUIRED / service.AUTH_EXPIRED — новый токен в обход кэша;
//   - account.AUTH_FAILED при аутентификации пользователя — проверка учётной
//     записи администратором: отсутствующая создаётся, неактивная даёт
//     ErrAccountInactive, в остальных случаях возвращается исходная ошибка.
func (c *Client) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	body, err := c.invoke(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	rpcRequestsTotal.WithLabelValues(req.Operation, outcome).Inc()
	return body, err
}

func (c *Client) invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	token, err := c.auth.GetToken(ctx, req.Principal, req.AsAdmin)
	if err != nil {
		if req.AsAdmin || !IsCode(err, CodeAuthFailed) {
			return nil, err
		}
		if rerr := c.recoverAuthFailure(ctx, req.Principal, err); rerr != nil {
			return nil, rerr
		}
		rpcReauthTotal.WithLabelValues("provisioned").Inc()
		if token, err = c.auth.Refresh(ctx, req.Principal, false); err != nil {
			return nil, err
		}
		return c.send(ctx, req, token)
	}

	body, err := c.send(ctx, req, token)
	if IsCode(err, CodeAuthRequired) || IsCode(err, CodeAuthExpired) {
		var re *RemoteError
		errors.As(err, &re)
		rpcReauthTotal.WithLabelValues(re.Code).Inc()
		c.logger.Debug("Повторная аутентификация",
			slog.String("operation", req.Operation),
			slog.String("code", re.Code),
		)
		if token, err = c.auth.Refresh(ctx, req.Principal, req.AsAdmin); err != nil {
			return nil, err
		}
		return c.send(ctx, req, token)
	}
	return body, err
}

// recoverAuthFailure проверяет учётную запись субъекта после account.AUTH_FAILED.
// nil означает, что учётная запись создана и операцию можно повторить.
func (c *Client) recoverAuthFailure(ctx context.Context, p model.Principal, authErr error) error {
	acc, err := c.GetAccount(ctx, p.Address)
	switch {
	case IsCode(err, CodeNoSuchAccount):
		if c.provisioner == nil {
			return authErr
		}
		c.logger.Info("Учётная запись отсутствует, создание",
			slog.String("principal", p.ID),
			slog.String("address", p.Address),
		)
		if perr := c.provisioner.ProvisionAccount(ctx, p.ID); perr != nil {
			return fmt.Errorf("создание учётной записи %s: %w", p.Address, perr)
		}
		return nil
	case err != nil:
		return authErr
	case acc.Status() != AccountStatusActive:
		return fmt.Errorf("%w: %s (%s)", ErrAccountInactive, p.Address, acc.Status())
	default:
		return authErr
	}
}

func (c *Client) send(ctx context.Context, req Request, token string) (json.RawMessage, error) {
	url := c.userURL
	if req.AsAdmin {
		url = c.adminURL
	}
	return c.transport.call(ctx, url, req.Operation, newEnvelope(req.Operation, req.Namespace, req.Payload, token))
}

// CheckReady проверяет доступность Zimbra через GetVersionInfo.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	version, err := c.GetVersionInfo(ctx)
	if err != nil {
		return "fail", fmt.Sprintf("Zimbra недоступна: %v", err)
	}
	return "ok", fmt.Sprintf("Zimbra %s доступна", version)
}
