// reconciler.go — сверка учётных записей и списков рассылки Zimbra с каталогом.
//
// CREATE: снимок → поиск по каноническому адресу id@domain → если есть,
// то как MODIFY; иначе создание login@domain, при account.ACCOUNT_EXISTS —
// login-1@domain, login-2@domain, … → алиас id@domain. Занятое имя без
// алиасов с employeeNumber = login осталось от прерванного CREATE и
// подхватывается вместо создания следующего суффикса.
// MODIFY: снимок → полный набор атрибутов. Отсутствующая учётная запись
// создаётся как при CREATE.
// DELETE: без снимка → «надгробие» (locked, скрыта из GAL, без профиля и
// структур) и исключение из всех списков рассылки.
//
// После CREATE/MODIFY несинхронизированные группы пользователя синхронизируются
// каскадом; результаты каскада возвращаются, но не влияют на итог задачи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
	"github.com/bigkaa/zimbra-sync/internal/identity"
	"github.com/bigkaa/zimbra-sync/internal/mailbox"
	"github.com/bigkaa/zimbra-sync/internal/repository"
)

// AccountReconciler приводит учётные записи Zimbra к состоянию каталога.
type AccountReconciler struct {
	source    identity.Source
	accounts  AccountGateway
	groups    repository.SyncedGroupRepository
	domain    string
	maxSuffix int
	logger    *slog.Logger
}

// NewAccountReconciler создаёт сервис сверки.
// maxSuffix — наибольшее N в login-N@domain.
func NewAccountReconciler(
	source identity.Source,
	accounts AccountGateway,
	groups repository.SyncedGroupRepository,
	domain string,
	maxSuffix int,
	logger *slog.Logger,
) *AccountReconciler {
	return &AccountReconciler{
		source:    source,
		accounts:  accounts,
		groups:    groups,
		domain:    domain,
		maxSuffix: maxSuffix,
		logger:    logger.With(slog.String("component", "account_reconciler")),
	}
}

// Reconcile выполняет задачу очереди.
func (r *AccountReconciler) Reconcile(ctx context.Context, job *model.SyncJob) (*model.ReconcileResult, error) {
	if job.UserID == "" {
		return nil, fmt.Errorf("%w: задача %d без пользователя", ErrValidation, job.ID)
	}

	switch job.Action {
	case model.ActionCreate, model.ActionModify:
		return r.upsert(ctx, job.UserID, job.Action)
	case model.ActionDelete:
		return r.delete(ctx, job.UserID)
	default:
		return nil, fmt.Errorf("%w: неизвестное действие %q", ErrValidation, job.Action)
	}
}

// ProvisionAccount создаёт учётную запись пользователя без каскада групп.
// Реализует mailbox.AccountProvisioner.
func (r *AccountReconciler) ProvisionAccount(ctx context.Context, principalID string) error {
	snap, err := r.snapshot(ctx, principalID)
	if err != nil {
		return err
	}
	_, err = r.ensureAccount(ctx, principalID, snap)
	return err
}

func (r *AccountReconciler) upsert(ctx context.Context, userID string, action model.SyncAction) (*model.ReconcileResult, error) {
	snap, err := r.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	res, err := r.ensureAccount(ctx, userID, snap)
	if err != nil {
		return nil, err
	}
	res.Action = action
	res.Cascade = r.cascade(ctx, snap.Groups)
	return res, nil
}

// ensureAccount обновляет существующую учётную запись или создаёт новую.
func (r *AccountReconciler) ensureAccount(ctx context.Context, userID string, snap *model.IdentitySnapshot) (*model.ReconcileResult, error) {
	p := model.NewPrincipal(userID, r.domain, model.PrincipalUser)
	attrs := userAttrs(snap)
	res := &model.ReconcileResult{UserID: userID}

	acc, err := r.accounts.GetAccount(ctx, p.Address)
	switch {
	case err == nil:
		if err := r.accounts.ModifyAccount(ctx, acc.ID, attrs); err != nil {
			return nil, fmt.Errorf("обновление %s: %w", acc.Name, err)
		}
	case mailbox.IsCode(err, mailbox.CodeNoSuchAccount):
		var adopted bool
		acc, adopted, err = r.createAccount(ctx, snap.Login, attrs)
		if err != nil {
			return nil, err
		}
		if adopted {
			if err := r.accounts.ModifyAccount(ctx, acc.ID, attrs); err != nil {
				return nil, fmt.Errorf("обновление %s: %w", acc.Name, err)
			}
		}
		if acc.Name != p.Address {
			if err := r.accounts.AddAccountAlias(ctx, acc.ID, p.Address); err != nil {
				return nil, fmt.Errorf("алиас %s для %s: %w", p.Address, acc.Name, err)
			}
		}
		res.Created = !adopted
		msg := "Учётная запись создана"
		if adopted {
			msg = "Подхвачена учётная запись прерванного создания"
		}
		r.logger.Info(msg,
			slog.String("user_id", userID),
			slog.String("account", acc.Name),
		)
	default:
		return nil, fmt.Errorf("поиск учётной записи %s: %w", p.Address, err)
	}

	res.AccountName = acc.Name
	res.RemoteID = acc.ID
	return res, nil
}

// createAccount создаёт login@domain, а при занятом имени — login-N@domain.
// adopted = true, если занятое имя оказалось учётной записью этого же
// пользователя, созданной без алиаса.
func (r *AccountReconciler) createAccount(ctx context.Context, login string, attrs map[string]string) (*mailbox.Account, bool, error) {
	for n := 0; n <= r.maxSuffix; n++ {
		local := login
		if n > 0 {
			local = fmt.Sprintf("%s-%d", login, n)
		}
		name := model.PrincipalAddress(local, r.domain)

		acc, err := r.accounts.CreateAccount(ctx, name, attrs)
		if err == nil {
			return acc, false, nil
		}
		if !mailbox.IsCode(err, mailbox.CodeAccountExists) {
			return nil, false, fmt.Errorf("создание %s: %w", name, err)
		}

		existing, err := r.accounts.GetAccount(ctx, name)
		if err != nil {
			return nil, false, fmt.Errorf("чтение занятой %s: %w", name, err)
		}
		if orphanOf(existing, login) {
			return existing, true, nil
		}
		r.logger.Debug("Имя учётной записи занято", slog.String("account", name))
	}
	return nil, false, fmt.Errorf("%w: %s (до -%d)", ErrNameSuffixExhausted, login, r.maxSuffix)
}

// orphanOf сообщает, что acc создана для login, но алиас id@domain ей так и
// не добавили. Учётная запись с любым алиасом принадлежит другому пользователю.
func orphanOf(acc *mailbox.Account, login string) bool {
	return acc.Attrs[mailbox.AttrEmployeeNumber] == login &&
		acc.Status() != mailbox.AccountStatusLocked &&
		len(acc.Aliases) == 0
}

func (r *AccountReconciler) delete(ctx context.Context, userID string) (*model.ReconcileResult, error) {
	p := model.NewPrincipal(userID, r.domain, model.PrincipalUser)
	res := &model.ReconcileResult{UserID: userID, Action: model.ActionDelete}

	acc, err := r.accounts.GetAccount(ctx, p.Address)
	if mailbox.IsCode(err, mailbox.CodeNoSuchAccount) {
		r.logger.Info("Учётная запись для удаления отсутствует", slog.String("user_id", userID))
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("поиск учётной записи %s: %w", p.Address, err)
	}
	res.AccountName = acc.Name
	res.RemoteID = acc.ID

	if err := r.accounts.ModifyAccount(ctx, acc.ID, tombstoneAttrs()); err != nil {
		return nil, fmt.Errorf("блокировка %s: %w", acc.Name, err)
	}

	lists, err := r.accounts.GetAccountMembership(ctx, acc.Name)
	if err != nil {
		return nil, fmt.Errorf("списки рассылки %s: %w", acc.Name, err)
	}
	for _, dl := range lists {
		if err := r.accounts.RemoveDistributionListMembers(ctx, dl.ID, []string{p.Address}); err != nil {
			return nil, fmt.Errorf("исключение %s из %s: %w", p.Address, dl.Name, err)
		}
	}
	return res, nil
}

// snapshot запрашивает актуальный снимок пользователя и проверяет login.
func (r *AccountReconciler) snapshot(ctx context.Context, userID string) (*model.IdentitySnapshot, error) {
	snap, err := r.source.PrincipalSnapshot(ctx, userID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, fmt.Errorf("%w: пользователь %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("снимок пользователя %s: %w", userID, err)
	}
	if strings.TrimSpace(snap.Login) == "" {
		return nil, fmt.Errorf("%w: у пользователя %s нет login", ErrValidation, userID)
	}
	return snap, nil
}

// cascade синхронизирует ещё не синхронизированные группы. Ошибки не прерывают
// каскад и не возвращаются как ошибка задачи.
func (r *AccountReconciler) cascade(ctx context.Context, groups []model.GroupRef) []model.CascadeResult {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}

	unsynced, err := r.groups.ListUnsynced(ctx, ids)
	if err != nil {
		r.logger.Warn("Не удалось получить несинхронизированные группы",
			slog.String("error", err.Error()),
		)
		return []model.CascadeResult{{Err: err}}
	}

	out := make([]model.CascadeResult, 0, len(unsynced))
	for _, id := range unsynced {
		err := r.SyncGroup(ctx, id)
		if err != nil {
			r.logger.Warn("Ошибка каскадной синхронизации группы",
				slog.String("group_id", id),
				slog.String("error", err.Error()),
			)
		}
		out = append(out, model.CascadeResult{GroupID: id, Err: err})
	}
	return out
}

// SyncGroup создаёт или обновляет список рассылки группы. Для ручных групп
// участники добавляются в список, отсутствующие учётные записи создаются.
func (r *AccountReconciler) SyncGroup(ctx context.Context, groupID string) error {
	g, err := r.source.GroupSnapshot(ctx, groupID)
	if errors.Is(err, identity.ErrNotFound) {
		return fmt.Errorf("%w: группа %s", ErrNotFound, groupID)
	}
	if err != nil {
		return fmt.Errorf("снимок группы %s: %w", groupID, err)
	}

	p := model.NewPrincipal(g.ID, r.domain, model.PrincipalGroup)
	attrs := groupAttrs(g)

	dl, err := r.accounts.GetDistributionList(ctx, p.Address)
	switch {
	case err == nil:
		if err := r.accounts.ModifyDistributionList(ctx, dl.ID, attrs); err != nil {
			return fmt.Errorf("обновление списка %s: %w", p.Address, err)
		}
	case mailbox.IsCode(err, mailbox.CodeNoSuchDL):
		if dl, err = r.accounts.CreateDistributionList(ctx, p.Address, attrs); err != nil {
			return fmt.Errorf("создание списка %s: %w", p.Address, err)
		}
	default:
		return fmt.Errorf("поиск списка %s: %w", p.Address, err)
	}

	if g.Kind == model.GroupKindManual {
		if err := r.syncMembers(ctx, dl, g.MemberIDs); err != nil {
			return err
		}
	}

	if err := r.groups.MarkSynced(ctx, g.ID, p.Address); err != nil {
		return err
	}
	r.logger.Info("Список рассылки синхронизирован",
		slog.String("group_id", g.ID),
		slog.String("dl", p.Address),
	)
	return nil
}

func (r *AccountReconciler) syncMembers(ctx context.Context, dl *mailbox.DistributionList, memberIDs []string) error {
	existing := make(map[string]bool, len(dl.Members))
	for _, m := range dl.Members {
		existing[strings.ToLower(m)] = true
	}

	var missing []string
	for _, id := range memberIDs {
		mp := model.NewPrincipal(id, r.domain, model.PrincipalUser)
		_, err := r.accounts.GetAccount(ctx, mp.Address)
		if mailbox.IsCode(err, mailbox.CodeNoSuchAccount) {
			err = r.ProvisionAccount(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("участник %s списка %s: %w", id, dl.Name, err)
		}
		if !existing[mp.Address] {
			missing = append(missing, mp.Address)
			existing[mp.Address] = true
		}
	}

	if err := r.accounts.AddDistributionListMembers(ctx, dl.ID, missing); err != nil {
		return fmt.Errorf("добавление участников в %s: %w", dl.Name, err)
	}
	return nil
}

// userAttrs — полный набор атрибутов учётной записи по снимку.
// zimbraNotes хранит время изменения в каталоге, а не время сверки,
// поэтому повторный MODIFY даёт тот же набор.
func userAttrs(s *model.IdentitySnapshot) map[string]string {
	surname := s.LastName
	if surname == "" {
		surname = s.Login
	}
	notes := ""
	if !s.ModifiedAt.IsZero() {
		notes = s.ModifiedAt.UTC().Format(time.RFC3339)
	}
	return map[string]string{
		mailbox.AttrGivenName:      s.FirstName,
		mailbox.AttrSurname:        surname,
		mailbox.AttrDisplayName:    s.DisplayName,
		mailbox.AttrEmployeeNumber: s.Login,
		mailbox.AttrTitle:          s.Profile,
		mailbox.AttrCompany:        structuresAttr(s.Structures),
		mailbox.AttrAccountStatus:  mailbox.AccountStatusActive,
		mailbox.AttrHideInGal:      "FALSE",
		mailbox.AttrNotes:          notes,
	}
}

// tombstoneAttrs — атрибуты удалённого пользователя.
func tombstoneAttrs() map[string]string {
	return map[string]string{
		mailbox.AttrTitle:         "",
		mailbox.AttrCompany:       "",
		mailbox.AttrAccountStatus: mailbox.AccountStatusLocked,
		mailbox.AttrHideInGal:     "TRUE",
	}
}

// structuresAttr — UAI структур, отсортированные и через пробел.
func structuresAttr(refs []model.StructureRef) string {
	seen := make(map[string]bool, len(refs))
	uais := make([]string, 0, len(refs))
	for _, s := range refs {
		if s.UAI == "" || seen[s.UAI] {
			continue
		}
		seen[s.UAI] = true
		uais = append(uais, s.UAI)
	}
	sort.Strings(uais)
	return strings.Join(uais, " ")
}

// groupAttrs — атрибуты списка рассылки; zimbraNotes описывает фильтр участников.
func groupAttrs(g *model.GroupSnapshot) map[string]string {
	name := g.DisplayName
	if name == "" {
		name = g.Name
	}
	filter := fmt.Sprintf("type=%s;profile=%s;structure=%s", g.Kind, g.Profile, g.Structure)
	return map[string]string{
		mailbox.AttrDisplayName: name,
		mailbox.AttrNotes:       filter,
	}
}
