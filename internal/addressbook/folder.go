// Пакет addressbook — дерево папок адресной книги, построенное из каталога,
// и его сериализация в CSV для ImportContactsRequest.
package addressbook

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// MembersFolder — подпапка участников для профилей персонала и преподавателей.
const MembersFolder = "Members"

// collationTag — язык сортировки контактов и папок.
var collationTag = language.French

// Folder — узел дерева адресной книги: множество контактов и именованные подпапки.
// Подпапки хранятся по folderKey: имена, которые Zimbra считает одинаковыми,
// сливаются в одну папку.
type Folder struct {
	name       string
	contacts   map[string]model.Contact
	subFolders map[string]*Folder
}

// NewFolder создаёт пустую папку.
func NewFolder() *Folder {
	return &Folder{
		contacts:   make(map[string]model.Contact),
		subFolders: make(map[string]*Folder),
	}
}

// Add добавляет контакт в папку по относительному пути, создавая промежуточные папки.
// Элементы пути приводятся к FolderName, пустые пропускаются.
// Повторное добавление контакта с тем же ключом заменяет его.
func (f *Folder) Add(path []string, c model.Contact) {
	node := f
	for _, name := range path {
		node = node.child(name)
	}
	node.contacts[c.Key()] = c
}

func (f *Folder) child(name string) *Folder {
	name = FolderName(name)
	if name == "" {
		return f
	}
	key := folderKey(name)
	sub, ok := f.subFolders[key]
	if !ok {
		sub = NewFolder()
		sub.name = name
		f.subFolders[key] = sub
	} else if name < sub.name {
		// итоговое имя не зависит от порядка пользователей в каталоге
		sub.name = name
	}
	return sub
}

// Sub возвращает подпапку или nil.
func (f *Folder) Sub(name string) *Folder {
	return f.subFolders[folderKey(FolderName(name))]
}

// Names возвращает имена подпапок в порядке сортировки.
func (f *Folder) Names() []string {
	names := make([]string, 0, len(f.subFolders))
	for _, sub := range f.subFolders {
		names = append(names, sub.name)
	}
	col := collate.New(collationTag)
	sort.SliceStable(names, func(i, j int) bool {
		if c := col.CompareString(names[i], names[j]); c != 0 {
			return c < 0
		}
		return names[i] < names[j]
	})
	return names
}

// Contacts возвращает контакты папки в порядке (фамилия, имя, email).
func (f *Folder) Contacts() []model.Contact {
	out := make([]model.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		out = append(out, c)
	}
	col := collate.New(collationTag)
	sort.Slice(out, func(i, j int) bool {
		return compareContacts(col, out[i], out[j]) < 0
	})
	return out
}

func compareContacts(col *collate.Collator, a, b model.Contact) int {
	for _, pair := range [][2]string{
		{a.LastName, b.LastName},
		{a.FirstName, b.FirstName},
		{a.Email, b.Email},
	} {
		if c := col.CompareString(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	// Равные по правилам сортировки строки упорядочиваются побайтово
	return strings.Compare(a.Key(), b.Key())
}

// Empty сообщает, что в дереве нет ни одного контакта.
func (f *Folder) Empty() bool {
	if len(f.contacts) > 0 {
		return false
	}
	for _, sub := range f.subFolders {
		if !sub.Empty() {
			return false
		}
	}
	return true
}

// Count возвращает количество папок (без корня) и контактов в дереве.
func (f *Folder) Count() (folders, contacts int) {
	contacts = len(f.contacts)
	for _, sub := range f.subFolders {
		fo, co := sub.Count()
		folders += fo + 1
		contacts += co
	}
	return folders, contacts
}

// FolderName — имя папки Zimbra: '/' заменяется на '-', пробелы по краям
// удаляются. Пустой результат означает, что имя непригодно.
func FolderName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "/", "-"))
}

// folderKey — ключ уникальности имени папки; Zimbra сравнивает имена без учёта регистра.
func folderKey(name string) string {
	return strings.ToLower(name)
}
