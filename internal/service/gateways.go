package service

import (
	"context"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
	"github.com/bigkaa/zimbra-sync/internal/mailbox"
)

// AccountGateway — административные операции Zimbra над учётными записями
// и списками рассылки. Реализуется *mailbox.Client.
type AccountGateway interface {
	GetAccount(ctx context.Context, name string) (*mailbox.Account, error)
	CreateAccount(ctx context.Context, name string, attrs map[string]string) (*mailbox.Account, error)
	ModifyAccount(ctx context.Context, id string, attrs map[string]string) error
	AddAccountAlias(ctx context.Context, id, alias string) error
	GetAccountMembership(ctx context.Context, name string) ([]mailbox.DistributionList, error)
	GetDistributionList(ctx context.Context, name string) (*mailbox.DistributionList, error)
	CreateDistributionList(ctx context.Context, name string, attrs map[string]string) (*mailbox.DistributionList, error)
	ModifyDistributionList(ctx context.Context, id string, attrs map[string]string) error
	AddDistributionListMembers(ctx context.Context, id string, addresses []string) error
	RemoveDistributionListMembers(ctx context.Context, id string, addresses []string) error
}

// ContactGateway — операции Zimbra с папками и контактами почтового ящика.
// Реализуется *mailbox.Client.
type ContactGateway interface {
	GetFolder(ctx context.Context, p model.Principal, path string) (*mailbox.Folder, error)
	CreateFolder(ctx context.Context, p model.Principal, parentID, name, view string) (*mailbox.Folder, error)
	EmptyFolder(ctx context.Context, p model.Principal, id string, recursive bool) error
	ImportContacts(ctx context.Context, p model.Principal, folderID, csv string) (int, error)
	Search(ctx context.Context, p model.Principal, query, types string, limit int) (*mailbox.SearchResult, error)
}
