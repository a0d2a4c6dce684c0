package mailbox

import (
	"errors"
	"fmt"
)

// Коды ошибок Zimbra (Body.Fault.Detail.Error.Code).
const (
	CodeAuthRequired      = "service.AUTH_REQUIRED"
	CodeAuthExpired       = "service.AUTH_EXPIRED"
	CodeAuthFailed        = "account.AUTH_FAILED"
	CodeNoSuchAccount     = "account.NO_SUCH_ACCOUNT"
	CodeAccountExists     = "account.ACCOUNT_EXISTS"
	CodeNoSuchDL          = "account.NO_SUCH_DISTRIBUTION_LIST"
	CodeDLExists          = "account.DISTRIBUTION_LIST_EXISTS"
	CodeNoSuchFolder      = "mail.NO_SUCH_FOLDER"
	CodeFolderExists      = "mail.ALREADY_EXISTS"
	CodeServiceInvalidReq = "service.INVALID_REQUEST"
)

var (
	// ErrPreauth — невозможно вычислить preauth; повтор не поможет.
	ErrPreauth = errors.New("ошибка вычисления preauth")
	// ErrAccountInactive — учётная запись существует, но не активна.
	ErrAccountInactive = errors.New("учётная запись Zimbra не активна")
	// ErrMalformedResponse — ответ не соответствует ожидаемой структуре.
	ErrMalformedResponse = errors.New("некорректный ответ Zimbra")
)

// RemoteError — ошибка, возвращённая Zimbra.
type RemoteError struct {
	// Status — HTTP-статус ответа
	Status int
	// Code — код ошибки Zimbra; пустой, если тело не удалось разобрать
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("Zimbra вернул статус %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("Zimbra %s: %s", e.Code, e.Message)
}

// IsCode сообщает, является ли err (или обёрнутая в неё ошибка) RemoteError с кодом code.
func IsCode(err error, code string) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Code == code
}
