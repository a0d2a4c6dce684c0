package addressbook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

func TestCSV_QuotesAndApostrophe(t *testing.T) {
	f := NewFolder()
	f.Add(nil, model.Contact{LastName: "O'Brien", FirstName: "Ann", Email: "a@x"})

	lines := strings.Split(strings.TrimSuffix(f.CSV(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"classes","structure","email","firstName","displayName","functions","lastName"`, lines[0])
	assert.Equal(t, `"","","a@x","Ann","","","O'Brien"`, lines[1])
}

func TestCSV_InnerQuotesAndMultiValues(t *testing.T) {
	f := NewFolder()
	f.Add(nil, model.Contact{
		LastName:    `Le "Grand"`,
		FirstName:   "Jean",
		DisplayName: "Jean Le Grand",
		Email:       "u9@ent.lan",
		Classes:     []string{"6A", "6B"},
		Structure:   "Lycée A",
		Functions:   []string{"Documentaliste", "CPE"},
	})

	rows := strings.Split(strings.TrimSuffix(f.CSV(), "\n"), "\n")
	require.Len(t, rows, 2)
	assert.Equal(t, `"6A, 6B","Lycée A","u9@ent.lan","Jean","Jean Le Grand","Documentaliste, CPE","Le 'Grand'"`, rows[1])
}

func TestFolder_ContactOrder(t *testing.T) {
	f := NewFolder()
	f.Add(nil, model.Contact{LastName: "Zola", FirstName: "Émile", Email: "z@x"})
	f.Add(nil, model.Contact{LastName: "Éluard", FirstName: "Paul", Email: "e@x"})
	f.Add(nil, model.Contact{LastName: "Durand", FirstName: "Marie", Email: "m2@x"})
	f.Add(nil, model.Contact{LastName: "Durand", FirstName: "Marie", Email: "m1@x"})
	f.Add(nil, model.Contact{LastName: "Durand", FirstName: "Anne", Email: "a@x"})

	var got []string
	for _, c := range f.Contacts() {
		got = append(got, c.Email)
	}
	// É сортируется рядом с E, а не после Z
	assert.Equal(t, []string{"a@x", "m1@x", "m2@x", "e@x", "z@x"}, got)
}

func TestFolder_StableCSV(t *testing.T) {
	build := func() string {
		f := NewFolder()
		for _, n := range []string{"Martin", "Bernard", "Petit", "Robert"} {
			f.Add(nil, model.Contact{LastName: n, Email: strings.ToLower(n) + "@x"})
		}
		return f.CSV()
	}
	first := build()
	for i := 0; i < 5; i++ {
		require.Equal(t, first, build())
	}
}

func TestBuild_Classification(t *testing.T) {
	users := []model.DirectoryUser{
		{ID: "P1", LastName: "Admin", Profile: model.ProfilePersonnel},
		{ID: "T1", LastName: "Prof", Profile: model.ProfileTeacher, Classes: []string{"6A"}},
		{ID: "S1", LastName: "Eleve", Profile: model.ProfileStudent, Classes: []string{"6A", "6B"}},
		{ID: "S2", LastName: "SansClasse", Profile: model.ProfileStudent},
		{ID: "R1", LastName: "Parent", Profile: model.ProfileRelative, Classes: []string{"6B"}},
		{ID: "G1", LastName: "Invite", Profile: model.ProfileGuest},
		{ID: "X1", LastName: "Inconnu", Profile: "Robot"},
	}
	groups := []model.DirectoryGroup{
		{ID: "GR1", DisplayName: "Conseil", Profile: model.ProfileTeacher},
		{ID: "GR2", DisplayName: "Tous"},
	}

	root := Build(users, groups, "ENT.lan")

	assert.Equal(t, []string{"Guest", "Personnel", "Relative", "Student", "Teacher"}, root.Names())

	members := root.Sub(model.ProfileTeacher).Sub(MembersFolder)
	require.NotNil(t, members)
	require.Len(t, members.Contacts(), 1)
	assert.Equal(t, "t1@ent.lan", members.Contacts()[0].Email)

	require.NotNil(t, root.Sub(model.ProfilePersonnel).Sub(MembersFolder))

	student := root.Sub(model.ProfileStudent)
	assert.Equal(t, []string{"6A", "6B"}, student.Names())
	assert.Len(t, student.Sub("6A").Contacts(), 1)
	assert.Len(t, student.Sub("6B").Contacts(), 1)
	assert.Empty(t, student.Contacts(), "ученик без класса не попадает в дерево")

	assert.Len(t, root.Sub(model.ProfileRelative).Sub("6B").Contacts(), 1)
	assert.Len(t, root.Sub(model.ProfileGuest).Contacts(), 1)

	// группа с профилем — в папке профиля, без профиля — в корне
	staff := root.Sub(model.ProfileTeacher).Contacts()
	require.Len(t, staff, 1)
	assert.Equal(t, "gr1@ent.lan", staff[0].Email)
	require.Len(t, root.Contacts(), 1)
	assert.Equal(t, "Tous", root.Contacts()[0].DisplayName)

	folders, contacts := root.Count()
	assert.Equal(t, 10, folders)
	assert.Equal(t, 8, contacts)
}

func TestBuild_Empty(t *testing.T) {
	root := Build([]model.DirectoryUser{
		{ID: "S2", Profile: model.ProfileStudent},
		{ID: "X1", Profile: "Robot"},
	}, nil, "ent.lan")

	assert.True(t, root.Empty())
	assert.True(t, Build(nil, nil, "ent.lan").Empty())
}

func TestBuild_CollidingClassNames(t *testing.T) {
	users := []model.DirectoryUser{
		{ID: "S1", LastName: "Lee", Profile: model.ProfileStudent, Classes: []string{"2/A"}},
		{ID: "S2", LastName: "Ray", Profile: model.ProfileStudent, Classes: []string{"2-a"}},
		{ID: "S3", LastName: "Zed", Profile: model.ProfileStudent, Classes: []string{" 2-A ", "  "}},
	}

	root := Build(users, nil, "ent.lan")

	students := root.Sub(model.ProfileStudent)
	require.NotNil(t, students)
	assert.Equal(t, []string{"2-A"}, students.Names())
	assert.Len(t, students.Sub("2/A").Contacts(), 3)
	assert.Same(t, students.Sub("2-A"), students.Sub("2-a"))
}
