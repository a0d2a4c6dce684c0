package model

// Contact — запись адресной книги.
// Порядок: (LastName, FirstName, Email).
type Contact struct {
	FirstName   string
	LastName    string
	DisplayName string
	Email       string
	Classes     []string
	Structure   string
	Functions   []string
}

// Key возвращает ключ уникальности контакта в папке.
func (c Contact) Key() string {
	return c.LastName + "\x00" + c.FirstName + "\x00" + c.Email
}
