package model

import "strings"

// PrincipalKind — тип субъекта каталога.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "USER"
	PrincipalGroup PrincipalKind = "GROUP"
)

// Principal — пользователь или группа, известные каталогу и (после
// создания) почтовому серверу.
type Principal struct {
	// ID — неизменяемый идентификатор в каталоге, ключ учётной записи Zimbra
	ID string
	// Address — вычисляемый адрес id@domain, никогда не хранится как истина
	Address string
	// Kind — USER или GROUP
	Kind PrincipalKind
}

// NewPrincipal создаёт субъект с адресом, вычисленным из id и домена.
func NewPrincipal(id, domain string, kind PrincipalKind) Principal {
	return Principal{ID: id, Address: PrincipalAddress(id, domain), Kind: kind}
}

// PrincipalAddress вычисляет канонический адрес субъекта: local-part@domain.
func PrincipalAddress(localPart, domain string) string {
	return strings.ToLower(localPart) + "@" + strings.ToLower(domain)
}
