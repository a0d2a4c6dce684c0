package model

import "time"

// Профили пользователей каталога.
const (
	ProfilePersonnel = "Personnel"
	ProfileTeacher   = "Teacher"
	ProfileStudent   = "Student"
	ProfileRelative  = "Relative"
	ProfileGuest     = "Guest"
)

// Типы групп каталога. Состав синхронизируется только для ручных групп.
const (
	GroupKindManual     = "ManualGroup"
	GroupKindProfile    = "ProfileGroup"
	GroupKindFunctional = "FunctionalGroup"
	GroupKindClass      = "ClassGroup"
)

// GroupRef — ссылка на группу в снимке пользователя.
type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StructureRef — ссылка на структуру (établissement) пользователя.
type StructureRef struct {
	UAI  string `json:"uai"`
	Name string `json:"name"`
}

// IdentitySnapshot — снимок пользователя в каталоге.
// Запрашивается заново для каждой задачи, не кэшируется между задачами.
type IdentitySnapshot struct {
	ExternalID  string `json:"externalId"`
	LastName    string `json:"lastName"`
	FirstName   string `json:"firstName"`
	DisplayName string `json:"displayName"`
	// Login — обязательное поле, его отсутствие делает задачу невалидной
	Login      string         `json:"login"`
	Email      string         `json:"email"`
	Profile    string         `json:"profile"`
	Groups     []GroupRef     `json:"groups"`
	Structures []StructureRef `json:"structures"`
	// ModifiedAt — время последнего изменения в каталоге
	ModifiedAt time.Time `json:"modified"`
}

// GroupSnapshot — снимок группы в каталоге.
type GroupSnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	// Kind — тип группы (ManualGroup, ProfileGroup, …)
	Kind string `json:"type"`
	// Profile — профиль участников (для ProfileGroup) или профиль группы
	Profile string `json:"profile"`
	// Structure — имя структуры, к которой относится группа
	Structure string   `json:"structure"`
	MemberIDs []string `json:"members"`
}

// DirectoryUser — пользователь в выборке каталога для адресной книги.
type DirectoryUser struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	DisplayName string   `json:"displayName"`
	Profile     string   `json:"profile"`
	Classes     []string `json:"classes"`
	Functions   []string `json:"functions"`
	Structure   string   `json:"structure"`
}

// DirectoryGroup — группа в выборке каталога для адресной книги.
type DirectoryGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Profile     string `json:"profile"`
	Structure   string `json:"structure"`
}
