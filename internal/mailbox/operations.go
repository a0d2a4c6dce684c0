// operations.go — типизированные операции Zimbra: учётные записи, списки
// рассылки, папки и контакты.
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// Атрибуты учётных записей и списков рассылки.
const (
	AttrGivenName      = "givenName"
	AttrSurname        = "sn"
	AttrDisplayName    = "displayName"
	AttrEmployeeNumber = "employeeNumber"
	AttrTitle          = "title"
	AttrCompany        = "company"
	AttrAccountStatus  = "zimbraAccountStatus"
	AttrHideInGal      = "zimbraHideInGal"
	AttrNotes          = "zimbraNotes"
	AttrMailAlias      = "zimbraMailAlias"

	AccountStatusActive = "active"
	AccountStatusLocked = "locked"

	// ViewContact — тип папки адресной книги.
	ViewContact = "contact"
)

func (c *Client) admin(ctx context.Context, operation string, payload map[string]any, out any) error {
	raw, err := c.Invoke(ctx, Request{
		Operation: operation,
		Namespace: NamespaceAdmin,
		Payload:   payload,
		AsAdmin:   true,
	})
	if err != nil {
		return err
	}
	return decodeInto(operation, raw, out)
}

func (c *Client) mail(ctx context.Context, p model.Principal, operation string, payload map[string]any, out any) error {
	raw, err := c.Invoke(ctx, Request{
		Operation: operation,
		Namespace: NamespaceMail,
		Payload:   payload,
		Principal: p,
	})
	if err != nil {
		return err
	}
	return decodeInto(operation, raw, out)
}

func decodeInto(operation string, raw json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, operation, err)
	}
	return nil
}

func byName(name string) map[string]any {
	return map[string]any{"by": "name", "_content": name}
}

func members(list []string) []content {
	out := make([]content, 0, len(list))
	for _, m := range list {
		out = append(out, content{Content: m})
	}
	return out
}

// --- Учётные записи ---

type accountsResponse struct {
	Accounts []accountJSON `json:"account"`
}

func (r accountsResponse) first(operation string) (*Account, error) {
	if len(r.Accounts) == 0 {
		return nil, fmt.Errorf("%w: %s без account", ErrMalformedResponse, operation)
	}
	return r.Accounts[0].toAccount(), nil
}

// GetAccount ищет учётную запись по имени (адресу или алиасу).
// Отсутствие — RemoteError с кодом account.NO_SUCH_ACCOUNT.
func (c *Client) GetAccount(ctx context.Context, name string) (*Account, error) {
	var resp accountsResponse
	if err := c.admin(ctx, "GetAccountRequest", map[string]any{"account": byName(name)}, &resp); err != nil {
		return nil, err
	}
	return resp.first("GetAccountResponse")
}

// CreateAccount создаёт учётную запись. Пароль не задаётся: вход только через preauth.
func (c *Client) CreateAccount(ctx context.Context, name string, attrs map[string]string) (*Account, error) {
	var resp accountsResponse
	err := c.admin(ctx, "CreateAccountRequest", map[string]any{
		"name": name,
		"a":    encodeAttrs(attrs),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.first("CreateAccountResponse")
}

// ModifyAccount заменяет значения перечисленных атрибутов.
func (c *Client) ModifyAccount(ctx context.Context, id string, attrs map[string]string) error {
	return c.admin(ctx, "ModifyAccountRequest", map[string]any{
		"id": id,
		"a":  encodeAttrs(attrs),
	}, nil)
}

// DeleteAccount удаляет учётную запись.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.admin(ctx, "DeleteAccountRequest", map[string]any{"id": id}, nil)
}

// AddAccountAlias добавляет алиас учётной записи.
func (c *Client) AddAccountAlias(ctx context.Context, id, alias string) error {
	return c.admin(ctx, "AddAccountAliasRequest", map[string]any{"id": id, "alias": alias}, nil)
}

// GetAccountMembership возвращает списки рассылки, в которые входит учётная запись.
func (c *Client) GetAccountMembership(ctx context.Context, name string) ([]DistributionList, error) {
	var resp distributionListsResponse
	if err := c.admin(ctx, "GetAccountMembershipRequest", map[string]any{"account": byName(name)}, &resp); err != nil {
		return nil, err
	}
	out := make([]DistributionList, 0, len(resp.Lists))
	for _, dl := range resp.Lists {
		out = append(out, *dl.toDistributionList())
	}
	return out, nil
}

// --- Списки рассылки ---

type distributionListsResponse struct {
	Lists []distributionListJSON `json:"dl"`
}

func (r distributionListsResponse) first(operation string) (*DistributionList, error) {
	if len(r.Lists) == 0 {
		return nil, fmt.Errorf("%w: %s без dl", ErrMalformedResponse, operation)
	}
	return r.Lists[0].toDistributionList(), nil
}

// GetDistributionList ищет список рассылки по имени.
// Отсутствие — RemoteError с кодом account.NO_SUCH_DISTRIBUTION_LIST.
func (c *Client) GetDistributionList(ctx context.Context, name string) (*DistributionList, error) {
	var resp distributionListsResponse
	if err := c.admin(ctx, "GetDistributionListRequest", map[string]any{"dl": byName(name)}, &resp); err != nil {
		return nil, err
	}
	return resp.first("GetDistributionListResponse")
}

// CreateDistributionList создаёт список рассылки.
func (c *Client) CreateDistributionList(ctx context.Context, name string, attrs map[string]string) (*DistributionList, error) {
	var resp distributionListsResponse
	err := c.admin(ctx, "CreateDistributionListRequest", map[string]any{
		"name": name,
		"a":    encodeAttrs(attrs),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.first("CreateDistributionListResponse")
}

// ModifyDistributionList заменяет значения атрибутов списка рассылки.
func (c *Client) ModifyDistributionList(ctx context.Context, id string, attrs map[string]string) error {
	return c.admin(ctx, "ModifyDistributionListRequest", map[string]any{
		"id": id,
		"a":  encodeAttrs(attrs),
	}, nil)
}

// AddDistributionListMembers добавляет адреса в список рассылки.
func (c *Client) AddDistributionListMembers(ctx context.Context, id string, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	return c.admin(ctx, "AddDistributionListMemberRequest", map[string]any{
		"id":  id,
		"dlm": members(addresses),
	}, nil)
}

// RemoveDistributionListMembers удаляет адреса из списка рассылки.
func (c *Client) RemoveDistributionListMembers(ctx context.Context, id string, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	return c.admin(ctx, "RemoveDistributionListMemberRequest", map[string]any{
		"id":  id,
		"dlm": members(addresses),
	}, nil)
}

// --- Папки и контакты ---

type foldersResponse struct {
	Folders []Folder `json:"folder"`
}

func (r foldersResponse) first(operation string) (*Folder, error) {
	if len(r.Folders) == 0 {
		return nil, fmt.Errorf("%w: %s без folder", ErrMalformedResponse, operation)
	}
	f := r.Folders[0]
	return &f, nil
}

// GetFolder возвращает папку по абсолютному пути в ящике субъекта.
// Отсутствие — RemoteError с кодом mail.NO_SUCH_FOLDER.
func (c *Client) GetFolder(ctx context.Context, p model.Principal, path string) (*Folder, error) {
	var resp foldersResponse
	if err := c.mail(ctx, p, "GetFolderRequest", map[string]any{
		"folder": map[string]any{"path": path},
	}, &resp); err != nil {
		return nil, err
	}
	return resp.first("GetFolderResponse")
}

// CreateFolder создаёт папку name внутри parentID.
// Существующая папка — RemoteError с кодом mail.ALREADY_EXISTS.
func (c *Client) CreateFolder(ctx context.Context, p model.Principal, parentID, name, view string) (*Folder, error) {
	var resp foldersResponse
	if err := c.mail(ctx, p, "CreateFolderRequest", map[string]any{
		"folder": map[string]any{"name": name, "l": parentID, "view": view},
	}, &resp); err != nil {
		return nil, err
	}
	return resp.first("CreateFolderResponse")
}

// EmptyFolder очищает папку; recursive удаляет и вложенные папки.
func (c *Client) EmptyFolder(ctx context.Context, p model.Principal, id string, recursive bool) error {
	return c.mail(ctx, p, "FolderActionRequest", map[string]any{
		"action": map[string]any{"op": "empty", "id": id, "recursive": recursive},
	}, nil)
}

type importContactsResponse struct {
	Contacts []struct {
		IDs   string `json:"ids"`
		Count int    `json:"n"`
	} `json:"cn"`
}

// ImportContacts импортирует CSV в папку и возвращает число созданных контактов.
func (c *Client) ImportContacts(ctx context.Context, p model.Principal, folderID, csv string) (int, error) {
	var resp importContactsResponse
	if err := c.mail(ctx, p, "ImportContactsRequest", map[string]any{
		"ct":      "csv",
		"l":       folderID,
		"content": content{Content: csv},
	}, &resp); err != nil {
		return 0, err
	}
	total := 0
	for _, cn := range resp.Contacts {
		total += cn.Count
	}
	return total, nil
}

// Search выполняет SearchRequest в ящике субъекта. types — conversation, message, contact.
func (c *Client) Search(ctx context.Context, p model.Principal, query, types string, limit int) (*SearchResult, error) {
	var resp searchResponse
	if err := c.mail(ctx, p, "SearchRequest", map[string]any{
		"query": query,
		"types": types,
		"limit": limit,
	}, &resp); err != nil {
		return nil, err
	}
	return &SearchResult{
		Conversations: len(resp.Conversations),
		Messages:      len(resp.Messages),
		Contacts:      len(resp.Contacts),
		More:          resp.More,
	}, nil
}

// GetVersionInfo возвращает версию сервера Zimbra.
func (c *Client) GetVersionInfo(ctx context.Context) (string, error) {
	var resp struct {
		Info []struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	if err := c.admin(ctx, "GetVersionInfoRequest", map[string]any{}, &resp); err != nil {
		return "", err
	}
	if len(resp.Info) == 0 {
		return "", fmt.Errorf("%w: GetVersionInfoResponse без info", ErrMalformedResponse)
	}
	return resp.Info[0].Version, nil
}
