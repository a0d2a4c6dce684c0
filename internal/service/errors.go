// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — субъект или структура не найдены в каталоге.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — задача или данные каталога невалидны; повтор не поможет.
	ErrValidation = errors.New("ошибка валидации")
	// ErrDrainInProgress — разбор очереди уже выполняется.
	ErrDrainInProgress = errors.New("разбор очереди уже выполняется")
	// ErrEmptyAddressBook — нет ни одного контакта для публикации.
	ErrEmptyAddressBook = errors.New("адресная книга пуста")
	// ErrNameSuffixExhausted — все имена login-N@domain заняты.
	ErrNameSuffixExhausted = errors.New("исчерпаны суффиксы имени учётной записи")
)
