// addressbook_sync.go — публикация адресных книг в Zimbra.
//
// Структура: дерево строится из пользователей и групп структуры и публикуется
// в общий ящик (ZS_ADDRESSBOOK_ACCOUNT) в папку <корень>/<структура>.
// Пустое дерево — успешный no-op.
//
// Видимые контакты: дерево строится из контактов, видимых пользователю,
// и публикуется в его собственный ящик в папку <корень>. Пустое дерево — ошибка.
//
// Публикация: папка очищается рекурсивно, затем каждый узел дерева создаётся
// и получает CSV своих контактов. Родитель создаётся раньше детей; соседние
// папки одного уровня создаются параллельно (errgroup с ограничением).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/zimbra-sync/internal/addressbook"
	"github.com/bigkaa/zimbra-sync/internal/domain/model"
	"github.com/bigkaa/zimbra-sync/internal/identity"
	"github.com/bigkaa/zimbra-sync/internal/mailbox"
	"github.com/bigkaa/zimbra-sync/internal/repository"
)

// rootFolderID — идентификатор корневой папки ящика Zimbra.
const rootFolderID = "1"

// maxSearchContacts — предел SearchRequest при подсчёте опубликованных контактов.
const maxSearchContacts = 1000

// AddressBookService публикует адресные книги.
type AddressBookService struct {
	source      identity.Source
	mail        ContactGateway
	state       repository.SyncStateRepository
	domain      string
	account     string
	rootFolder  string
	parallelism int
	logger      *slog.Logger
}

// NewAddressBookService создаёт сервис адресных книг.
// account — общий ящик для книг структур; rootFolder — имя корневой папки.
func NewAddressBookService(
	source identity.Source,
	mail ContactGateway,
	state repository.SyncStateRepository,
	domain, account, rootFolder string,
	parallelism int,
	logger *slog.Logger,
) *AddressBookService {
	if parallelism < 1 {
		parallelism = 1
	}
	return &AddressBookService{
		source:      source,
		mail:        mail,
		state:       state,
		domain:      domain,
		account:     account,
		rootFolder:  rootFolder,
		parallelism: parallelism,
		logger:      logger.With(slog.String("component", "addressbook_sync")),
	}
}

// SyncStructure публикует адресную книгу структуры uai в общий ящик.
func (s *AddressBookService) SyncStructure(ctx context.Context, uai string) (*model.AddressBookResult, error) {
	timer := prometheus.NewTimer(addressBookSyncDuration.WithLabelValues("structure"))
	defer timer.ObserveDuration()

	ref, err := s.source.Structure(ctx, uai)
	if err != nil {
		return nil, s.sourceErr(err, "структура "+uai)
	}
	users, err := s.source.UsersOfStructure(ctx, uai)
	if err != nil {
		return nil, s.sourceErr(err, "пользователи структуры "+uai)
	}
	groups, err := s.source.GroupsOfStructure(ctx, uai)
	if err != nil {
		return nil, s.sourceErr(err, "группы структуры "+uai)
	}

	owner := model.Principal{ID: s.account, Address: s.account, Kind: model.PrincipalUser}
	result := s.newResult(owner)
	logger := s.logger.With(slog.String("run_id", result.RunID), slog.String("uai", uai))

	tree := addressbook.Build(users, groups, s.domain)
	if tree.Empty() {
		result.Skipped = true
		result.CompletedAt = time.Now().UTC()
		logger.Info("Адресная книга структуры пуста, публикация не требуется")
		return result, nil
	}

	root, err := s.ensureFolder(ctx, owner, rootFolderID, "", s.rootFolder)
	if err != nil {
		return nil, err
	}
	name := addressbook.FolderName(ref.Name)
	if name == "" {
		name = uai
	}
	target, err := s.ensureFolder(ctx, owner, root.ID, "/"+s.rootFolder, name)
	if err != nil {
		return nil, err
	}

	imported, err := s.publish(ctx, owner, target, tree)
	if err != nil {
		return nil, err
	}

	result.Folders, _ = tree.Count()
	result.Contacts = imported
	return s.finish(ctx, logger, result), nil
}

// SyncVisibleContacts публикует контакты, видимые пользователю, в его ящик.
func (s *AddressBookService) SyncVisibleContacts(ctx context.Context, userID string) (*model.AddressBookResult, error) {
	timer := prometheus.NewTimer(addressBookSyncDuration.WithLabelValues("visible"))
	defer timer.ObserveDuration()

	users, groups, err := s.source.VisibleContacts(ctx, userID)
	if err != nil {
		return nil, s.sourceErr(err, "видимые контакты "+userID)
	}

	tree := addressbook.Build(users, groups, s.domain)
	if tree.Empty() {
		return nil, fmt.Errorf("%w: пользователь %s", ErrEmptyAddressBook, userID)
	}

	owner := model.NewPrincipal(userID, s.domain, model.PrincipalUser)
	result := s.newResult(owner)
	logger := s.logger.With(slog.String("run_id", result.RunID), slog.String("user_id", userID))

	target, err := s.ensureFolder(ctx, owner, rootFolderID, "", s.rootFolder)
	if err != nil {
		return nil, err
	}
	imported, err := s.publish(ctx, owner, target, tree)
	if err != nil {
		return nil, err
	}

	result.Folders, _ = tree.Count()
	result.Contacts = imported

	// Контроль: количество контактов в опубликованном дереве
	found, err := s.mail.Search(ctx, owner, fmt.Sprintf("under:%q", "/"+s.rootFolder), "contact", maxSearchContacts)
	if err != nil {
		logger.Warn("Не удалось проверить опубликованные контакты", slog.String("error", err.Error()))
	} else if !found.More {
		if found.Contacts != imported {
			logger.Warn("Количество контактов в ящике отличается от импортированного",
				slog.Int("imported", imported),
				slog.Int("found", found.Contacts),
			)
		}
		result.Contacts = found.Contacts
	}

	return s.finish(ctx, logger, result), nil
}

func (s *AddressBookService) newResult(owner model.Principal) *model.AddressBookResult {
	return &model.AddressBookResult{
		RunID:     uuid.NewString(),
		Target:    owner.Address,
		StartedAt: time.Now().UTC(),
	}
}

func (s *AddressBookService) finish(ctx context.Context, logger *slog.Logger, result *model.AddressBookResult) *model.AddressBookResult {
	result.CompletedAt = time.Now().UTC()
	if err := s.state.UpdateAddressBookAt(ctx, result.CompletedAt); err != nil {
		logger.Warn("Ошибка обновления last_addressbook_at", slog.String("error", err.Error()))
	}
	logger.Info("Адресная книга опубликована",
		slog.String("target", result.Target),
		slog.Int("folders", result.Folders),
		slog.Int("contacts", result.Contacts),
		slog.Duration("duration", result.CompletedAt.Sub(result.StartedAt)),
	)
	return result
}

// publish очищает target и заполняет его деревом. Возвращает число импортированных контактов.
func (s *AddressBookService) publish(ctx context.Context, owner model.Principal, target *mailbox.Folder, tree *addressbook.Folder) (int, error) {
	if err := s.mail.EmptyFolder(ctx, owner, target.ID, true); err != nil {
		return 0, fmt.Errorf("очистка папки %s: %w", target.Path, err)
	}

	var imported atomic.Int64
	if err := s.push(ctx, owner, target.ID, tree, &imported); err != nil {
		return 0, err
	}
	return int(imported.Load()), nil
}

// push импортирует контакты узла в folderID, затем создаёт подпапки одного
// уровня параллельно и рекурсивно заполняет их.
func (s *AddressBookService) push(ctx context.Context, owner model.Principal, folderID string, node *addressbook.Folder, imported *atomic.Int64) error {
	if len(node.Contacts()) > 0 {
		n, err := s.mail.ImportContacts(ctx, owner, folderID, node.CSV())
		if err != nil {
			return fmt.Errorf("импорт контактов в папку %s: %w", folderID, err)
		}
		imported.Add(int64(n))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, name := range node.Names() {
		child := node.Sub(name)
		g.Go(func() error {
			f, err := s.mail.CreateFolder(gctx, owner, folderID, name, mailbox.ViewContact)
			if err != nil {
				return fmt.Errorf("создание папки %s: %w", name, err)
			}
			return s.push(gctx, owner, f.ID, child, imported)
		})
	}
	return g.Wait()
}

// ensureFolder возвращает папку name внутри parentID, создавая её при отсутствии.
func (s *AddressBookService) ensureFolder(ctx context.Context, owner model.Principal, parentID, parentPath, name string) (*mailbox.Folder, error) {
	path := parentPath + "/" + name

	f, err := s.mail.GetFolder(ctx, owner, path)
	if err == nil {
		return f, nil
	}
	if !mailbox.IsCode(err, mailbox.CodeNoSuchFolder) {
		return nil, fmt.Errorf("поиск папки %s: %w", path, err)
	}

	f, err = s.mail.CreateFolder(ctx, owner, parentID, name, mailbox.ViewContact)
	if mailbox.IsCode(err, mailbox.CodeFolderExists) {
		// Создана конкурентной публикацией
		return s.mail.GetFolder(ctx, owner, path)
	}
	if err != nil {
		return nil, fmt.Errorf("создание папки %s: %w", path, err)
	}
	if f.Path == "" {
		f.Path = path
	}
	return f, nil
}

func (s *AddressBookService) sourceErr(err error, what string) error {
	if errors.Is(err, identity.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
