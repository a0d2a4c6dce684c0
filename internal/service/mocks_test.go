package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
	"github.com/bigkaa/zimbra-sync/internal/identity"
	"github.com/bigkaa/zimbra-sync/internal/mailbox"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func remoteErr(code string) error {
	return &mailbox.RemoteError{Status: 500, Code: code, Message: code}
}

// --- каталог ---

type mockSource struct {
	users     map[string]*model.IdentitySnapshot
	groups    map[string]*model.GroupSnapshot
	structure map[string]*model.StructureRef
	dirUsers  []model.DirectoryUser
	dirGroups []model.DirectoryGroup
	err       error
}

func (m *mockSource) PrincipalSnapshot(_ context.Context, id string) (*model.IdentitySnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return s, nil
}

func (m *mockSource) GroupSnapshot(_ context.Context, id string) (*model.GroupSnapshot, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return g, nil
}

func (m *mockSource) GroupsOfPrincipal(_ context.Context, id string) ([]model.GroupRef, error) {
	s, ok := m.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return s.Groups, nil
}

func (m *mockSource) Structure(_ context.Context, uai string) (*model.StructureRef, error) {
	s, ok := m.structure[uai]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return s, nil
}

func (m *mockSource) UsersOfStructure(context.Context, string) ([]model.DirectoryUser, error) {
	return m.dirUsers, m.err
}

func (m *mockSource) GroupsOfStructure(context.Context, string) ([]model.DirectoryGroup, error) {
	return m.dirGroups, m.err
}

func (m *mockSource) VisibleContacts(context.Context, string) ([]model.DirectoryUser, []model.DirectoryGroup, error) {
	return m.dirUsers, m.dirGroups, m.err
}

// --- Zimbra: учётные записи и списки рассылки ---

// mockAccounts хранит учётные записи и списки рассылки в памяти
// и записывает вызовы изменяющих операций.
type mockAccounts struct {
	mu       sync.Mutex
	accounts map[string]*mailbox.Account // ключ — имя или алиас
	lists    map[string]*mailbox.DistributionList
	calls    []string
	seq      int

	// failCreate — ошибка CreateAccount для любого имени
	failCreate error
	// failAlias — ошибка ближайшего AddAccountAlias, затем сбрасывается
	failAlias error
	// modified — последние атрибуты ModifyAccount по id
	modified map[string]map[string]string
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{
		accounts: make(map[string]*mailbox.Account),
		lists:    make(map[string]*mailbox.DistributionList),
		modified: make(map[string]map[string]string),
	}
}

func (m *mockAccounts) record(format string, args ...any) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *mockAccounts) addAccount(name, status string) *mailbox.Account {
	m.seq++
	acc := &mailbox.Account{
		ID:    fmt.Sprintf("acc-%d", m.seq),
		Name:  name,
		Attrs: map[string]string{mailbox.AttrAccountStatus: status},
	}
	m.accounts[name] = acc
	return acc
}

func (m *mockAccounts) GetAccount(_ context.Context, name string) (*mailbox.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[name]
	if !ok {
		return nil, remoteErr(mailbox.CodeNoSuchAccount)
	}
	return acc, nil
}

func (m *mockAccounts) CreateAccount(_ context.Context, name string, attrs map[string]string) (*mailbox.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create %s", name)
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	if _, ok := m.accounts[name]; ok {
		return nil, remoteErr(mailbox.CodeAccountExists)
	}
	acc := m.addAccount(name, mailbox.AccountStatusActive)
	acc.Attrs = attrs
	return acc, nil
}

func (m *mockAccounts) ModifyAccount(_ context.Context, id string, attrs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("modify %s", id)
	m.modified[id] = attrs
	return nil
}

func (m *mockAccounts) AddAccountAlias(_ context.Context, id, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("alias %s %s", id, alias)
	if err := m.failAlias; err != nil {
		m.failAlias = nil
		return err
	}
	for _, acc := range m.accounts {
		if acc.ID == id {
			acc.Aliases = append(acc.Aliases, alias)
			m.accounts[alias] = acc
			return nil
		}
	}
	return remoteErr(mailbox.CodeNoSuchAccount)
}

func (m *mockAccounts) GetAccountMembership(_ context.Context, name string) ([]mailbox.DistributionList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[name]
	if !ok {
		return nil, remoteErr(mailbox.CodeNoSuchAccount)
	}
	var out []mailbox.DistributionList
	for _, dl := range m.lists {
		for _, member := range dl.Members {
			if m.accounts[member] == acc {
				out = append(out, *dl)
				break
			}
		}
	}
	return out, nil
}

func (m *mockAccounts) GetDistributionList(_ context.Context, name string) (*mailbox.DistributionList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dl, ok := m.lists[name]
	if !ok {
		return nil, remoteErr(mailbox.CodeNoSuchDL)
	}
	cp := *dl
	cp.Members = append([]string(nil), dl.Members...)
	return &cp, nil
}

func (m *mockAccounts) CreateDistributionList(_ context.Context, name string, attrs map[string]string) (*mailbox.DistributionList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create-dl %s", name)
	dl := &mailbox.DistributionList{ID: "dl-" + name, Name: name, Attrs: attrs}
	m.lists[name] = dl
	cp := *dl
	return &cp, nil
}

func (m *mockAccounts) ModifyDistributionList(_ context.Context, id string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("modify-dl %s", id)
	return nil
}

func (m *mockAccounts) listByID(id string) *mailbox.DistributionList {
	for _, dl := range m.lists {
		if dl.ID == id {
			return dl
		}
	}
	return nil
}

func (m *mockAccounts) AddDistributionListMembers(_ context.Context, id string, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("add-members %s %s", id, strings.Join(addresses, ","))
	dl := m.listByID(id)
	if dl == nil {
		return remoteErr(mailbox.CodeNoSuchDL)
	}
	dl.Members = append(dl.Members, addresses...)
	return nil
}

func (m *mockAccounts) RemoveDistributionListMembers(_ context.Context, id string, addresses []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("remove-members %s %s", id, strings.Join(addresses, ","))
	dl := m.listByID(id)
	if dl == nil {
		return remoteErr(mailbox.CodeNoSuchDL)
	}
	kept := dl.Members[:0]
	for _, member := range dl.Members {
		remove := false
		for _, a := range addresses {
			if member == a {
				remove = true
			}
		}
		if !remove {
			kept = append(kept, member)
		}
	}
	dl.Members = kept
	return nil
}

// --- репозитории ---

type mockSyncedGroups struct {
	mu      sync.Mutex
	synced  map[string]string
	listErr error
}

func newMockSyncedGroups() *mockSyncedGroups {
	return &mockSyncedGroups{synced: make(map[string]string)}
}

func (m *mockSyncedGroups) ListUnsynced(_ context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []string
	for _, id := range ids {
		if _, ok := m.synced[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *mockSyncedGroups) MarkSynced(_ context.Context, groupID, dlName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced[groupID] = dlName
	return nil
}

type mockSyncState struct {
	mu          sync.Mutex
	drainAt     *time.Time
	addressAt   *time.Time
	drainCalls  int
	updateError error
}

func (m *mockSyncState) Get(context.Context) (*model.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &model.SyncState{ID: 1, LastDrainAt: m.drainAt, LastAddressBookAt: m.addressAt}, nil
}

func (m *mockSyncState) UpdateDrainAt(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainCalls++
	m.drainAt = &t
	return m.updateError
}

func (m *mockSyncState) UpdateAddressBookAt(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addressAt = &t
	return m.updateError
}

// mockQueue — очередь в памяти с семантикой ClaimNext/Complete.
type mockQueue struct {
	mu       sync.Mutex
	jobs     []*model.SyncJob
	claimErr error
	// claimHook вызывается при каждом захвате (до выбора задачи)
	claimHook func()
}

func (m *mockQueue) push(userID string, action model.SyncAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, &model.SyncJob{
		ID:     int64(len(m.jobs) + 1),
		UserID: userID,
		Action: action,
		Status: model.StatusTodo,
	})
}

func (m *mockQueue) ClaimNext(_ context.Context, staleBefore *time.Time) (*model.SyncJob, error) {
	if m.claimHook != nil {
		m.claimHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	for _, j := range m.jobs {
		stale := j.Status == model.StatusInProgress && staleBefore != nil &&
			j.ClaimedAt != nil && j.ClaimedAt.Before(*staleBefore)
		if j.Status == model.StatusTodo || stale {
			now := time.Now()
			j.Status = model.StatusInProgress
			j.ClaimedAt = &now
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockQueue) Complete(_ context.Context, job *model.SyncJob, status model.SyncStatus, logs string) error {
	if job.ID == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID == job.ID {
			j.Status = status
			j.Logs = logs
			return nil
		}
	}
	return fmt.Errorf("задача %d не найдена", job.ID)
}

func (m *mockQueue) Enqueue(_ context.Context, userID string, action model.SyncAction) (*model.SyncJob, error) {
	m.push(userID, action)
	return m.jobs[len(m.jobs)-1], nil
}

func (m *mockQueue) CountByStatus(context.Context) (*model.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &model.QueueStats{}
	for _, j := range m.jobs {
		switch j.Status {
		case model.StatusTodo:
			stats.Todo++
		case model.StatusInProgress:
			stats.InProgress++
		case model.StatusDone:
			stats.Done++
		case model.StatusError:
			stats.Error++
		}
	}
	return stats, nil
}

func (m *mockQueue) ResetStale(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, j := range m.jobs {
		if j.Status == model.StatusInProgress && j.ClaimedAt != nil && j.ClaimedAt.Before(before) {
			j.Status = model.StatusTodo
			j.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

// --- Zimbra: папки и контакты ---

// mockContacts хранит папки ящиков в памяти: ключ — адрес владельца и путь.
type mockContacts struct {
	mu      sync.Mutex
	folders map[string]*mailbox.Folder
	paths   map[string]string // id → путь
	// imports — CSV, импортированные в папку (ключ — путь)
	imports map[string]string
	emptied []string
	calls   []string
	seq     int

	searchCount int
	failImport  error
}

func newMockContacts() *mockContacts {
	return &mockContacts{
		folders: make(map[string]*mailbox.Folder),
		paths:   map[string]string{rootFolderID: ""},
		imports: make(map[string]string),
	}
}

func (m *mockContacts) GetFolder(_ context.Context, p model.Principal, path string) (*mailbox.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[p.Address+":"+path]
	if !ok {
		return nil, remoteErr(mailbox.CodeNoSuchFolder)
	}
	return f, nil
}

func (m *mockContacts) CreateFolder(_ context.Context, p model.Principal, parentID, name, view string) (*mailbox.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, ok := m.paths[parentID]
	if !ok {
		return nil, remoteErr(mailbox.CodeNoSuchFolder)
	}
	path := parent + "/" + name
	key := p.Address + ":" + path
	if _, ok := m.folders[key]; ok {
		return nil, remoteErr(mailbox.CodeFolderExists)
	}
	m.seq++
	f := &mailbox.Folder{ID: fmt.Sprintf("f%d", m.seq), Name: name, ParentID: parentID, Path: path, View: view}
	m.folders[key] = f
	m.paths[f.ID] = path
	m.calls = append(m.calls, "create "+path)
	return f, nil
}

func (m *mockContacts) EmptyFolder(_ context.Context, p model.Principal, id string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := m.paths[id] + "/"
	for key, f := range m.folders {
		if strings.HasPrefix(f.Path, prefix) && strings.HasPrefix(key, p.Address+":") {
			delete(m.folders, key)
			delete(m.imports, f.Path)
		}
	}
	m.emptied = append(m.emptied, m.paths[id])
	return nil
}

func (m *mockContacts) ImportContacts(_ context.Context, _ model.Principal, folderID, csv string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failImport != nil {
		return 0, m.failImport
	}
	path := m.paths[folderID]
	m.imports[path] = csv
	// Первая строка — заголовок
	return strings.Count(csv, "\n") - 1, nil
}

func (m *mockContacts) Search(context.Context, model.Principal, string, string, int) (*mailbox.SearchResult, error) {
	return &mailbox.SearchResult{Contacts: m.searchCount}, nil
}
