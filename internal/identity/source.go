// Пакет identity — доступ к каталогу пользователей, групп и структур
// (identity graph). Каталог только читается.
package identity

import (
	"context"
	"errors"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// ErrNotFound — субъект или структура отсутствуют в каталоге.
var ErrNotFound = errors.New("не найдено в каталоге")

// Source — источник данных каталога.
type Source interface {
	// PrincipalSnapshot возвращает актуальный снимок пользователя.
	PrincipalSnapshot(ctx context.Context, id string) (*model.IdentitySnapshot, error)
	// GroupSnapshot возвращает снимок группы с составом.
	GroupSnapshot(ctx context.Context, id string) (*model.GroupSnapshot, error)
	// GroupsOfPrincipal возвращает группы пользователя.
	GroupsOfPrincipal(ctx context.Context, id string) ([]model.GroupRef, error)
	// Structure возвращает структуру по UAI.
	Structure(ctx context.Context, uai string) (*model.StructureRef, error)
	// UsersOfStructure возвращает пользователей структуры.
	UsersOfStructure(ctx context.Context, uai string) ([]model.DirectoryUser, error)
	// GroupsOfStructure возвращает группы структуры.
	GroupsOfStructure(ctx context.Context, uai string) ([]model.DirectoryGroup, error)
	// VisibleContacts возвращает пользователей и группы, видимые пользователю.
	VisibleContacts(ctx context.Context, userID string) ([]model.DirectoryUser, []model.DirectoryGroup, error)
}
