package addressbook

import (
	"strings"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// csvHeader — порядок колонок импорта; Zimbra сопоставляет колонки по позиции.
var csvHeader = []string{"classes", "structure", "email", "firstName", "displayName", "functions", "lastName"}

// CSV сериализует контакты папки (без подпапок): строка заголовка и по строке
// на контакт, каждое значение в двойных кавычках, кавычки внутри заменены на '.
func (f *Folder) CSV() string {
	var b strings.Builder
	writeRow(&b, csvHeader)
	for _, c := range f.Contacts() {
		writeRow(&b, contactRow(c))
	}
	return b.String()
}

func contactRow(c model.Contact) []string {
	return []string{
		strings.Join(c.Classes, ", "),
		c.Structure,
		c.Email,
		c.FirstName,
		c.DisplayName,
		strings.Join(c.Functions, ", "),
		c.LastName,
	}
}

var csvValueReplacer = strings.NewReplacer(`"`, `'`, "\r\n", " ", "\n", " ", "\r", " ")

func writeRow(b *strings.Builder, values []string) {
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(csvValueReplacer.Replace(v))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}
