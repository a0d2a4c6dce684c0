package addressbook

import (
	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// Build строит дерево адресной книги из пользователей и групп каталога.
//
//	Personnel, Teacher  → <профиль>/Members
//	Student, Relative   → <профиль>/<класс> для каждого класса; без класса — пропуск
//	Guest               → <профиль>
//	группы              → <профиль группы> или корень
//
// Пользователи с неизвестным профилем пропускаются. Классы, дающие одинаковое
// имя папки ("2/A", "2-A", "2-a"), попадают в одну папку.
func Build(users []model.DirectoryUser, groups []model.DirectoryGroup, domain string) *Folder {
	root := NewFolder()

	for _, u := range users {
		c := userContact(u, domain)
		for _, path := range userPaths(u) {
			root.Add(path, c)
		}
	}

	for _, g := range groups {
		c := model.Contact{
			LastName:    g.DisplayName,
			DisplayName: g.DisplayName,
			Email:       model.PrincipalAddress(g.ID, domain),
			Structure:   g.Structure,
		}
		if knownProfile(g.Profile) {
			root.Add([]string{g.Profile}, c)
		} else {
			root.Add(nil, c)
		}
	}

	return root
}

func userPaths(u model.DirectoryUser) [][]string {
	switch u.Profile {
	case model.ProfilePersonnel, model.ProfileTeacher:
		return [][]string{{u.Profile, MembersFolder}}
	case model.ProfileStudent, model.ProfileRelative:
		paths := make([][]string, 0, len(u.Classes))
		for _, class := range u.Classes {
			if FolderName(class) == "" {
				continue
			}
			paths = append(paths, []string{u.Profile, class})
		}
		return paths
	case model.ProfileGuest:
		return [][]string{{u.Profile}}
	}
	return nil
}

func knownProfile(p string) bool {
	switch p {
	case model.ProfilePersonnel, model.ProfileTeacher, model.ProfileStudent,
		model.ProfileRelative, model.ProfileGuest:
		return true
	}
	return false
}

func userContact(u model.DirectoryUser, domain string) model.Contact {
	return model.Contact{
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: u.DisplayName,
		Email:       model.PrincipalAddress(u.ID, domain),
		Classes:     u.Classes,
		Structure:   u.Structure,
		Functions:   u.Functions,
	}
}
