// Пакет mailbox — JSON-SOAP клиент к Zimbra.
// models.go — конверт запроса/ответа и модели данных Zimbra.
package mailbox

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Пространства имён Zimbra SOAP.
const (
	NamespaceAccount = "urn:zimbraAccount"
	NamespaceAdmin   = "urn:zimbraAdmin"
	NamespaceMail    = "urn:zimbraMail"

	namespaceContext = "urn:zimbra"
)

// Session — сессия субъекта в кэше токенов.
type Session struct {
	Token     string
	ExpiresAt time.Time
	IsAdmin   bool
}

// Valid сообщает, можно ли использовать токен в момент now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// envelope — конверт запроса {"Header":…, "Body":{Op: payload}}.
type envelope struct {
	Header envelopeHeader `json:"Header"`
	Body   map[string]any `json:"Body"`
}

type envelopeHeader struct {
	Context map[string]any `json:"context"`
	Format  envelopeFormat `json:"format"`
}

type envelopeFormat struct {
	Type string `json:"type"`
}

// newEnvelope формирует конверт. Пустой token — запрос без сессии (аутентификация).
func newEnvelope(operation, namespace string, payload map[string]any, token string) envelope {
	ctx := map[string]any{"_jsns": namespaceContext}
	if token == "" {
		ctx["_content"] = []any{map[string]any{"nosession": map[string]any{}}}
	} else {
		ctx["authToken"] = token
	}

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["_jsns"] = namespace

	return envelope{
		Header: envelopeHeader{Context: ctx, Format: envelopeFormat{Type: "js"}},
		Body:   map[string]any{operation: body},
	}
}

// responseName возвращает имя элемента ответа: FooRequest → FooResponse.
func responseName(operation string) string {
	return strings.TrimSuffix(operation, "Request") + "Response"
}

// responseEnvelope — конверт ответа.
type responseEnvelope struct {
	Body map[string]json.RawMessage `json:"Body"`
}

// faultBody — Body.Fault ответа с ошибкой.
type faultBody struct {
	Reason struct {
		Text string `json:"Text"`
	} `json:"Reason"`
	Detail struct {
		Error struct {
			Code string `json:"Code"`
		} `json:"Error"`
	} `json:"Detail"`
}

// content — элемент {"_content": "..."}.
type content struct {
	Content string `json:"_content"`
}

// attr — атрибут {"n": name, "_content": value}.
type attr struct {
	Name  string `json:"n"`
	Value string `json:"_content"`
}

// encodeAttrs сортирует атрибуты по имени для стабильного тела запроса.
func encodeAttrs(attrs map[string]string) []attr {
	names := make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]attr, 0, len(names))
	for _, n := range names {
		out = append(out, attr{Name: n, Value: attrs[n]})
	}
	return out
}

func decodeAttrs(list []attr) map[string]string {
	out := make(map[string]string, len(list))
	for _, a := range list {
		out[a.Name] = a.Value
	}
	return out
}

// authResponse — AuthResponse (account и admin).
type authResponse struct {
	AuthToken []content `json:"authToken"`
	// Lifetime — время жизни токена в миллисекундах
	Lifetime int64 `json:"lifetime"`
}

// Account — учётная запись Zimbra.
type Account struct {
	ID    string
	Name  string
	Attrs map[string]string
	// Aliases — все значения многозначного zimbraMailAlias
	Aliases []string
}

// Status возвращает zimbraAccountStatus (active, locked, closed, …).
func (a *Account) Status() string {
	return a.Attrs[AttrAccountStatus]
}

type accountJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Attrs []attr `json:"a"`
}

func (a accountJSON) toAccount() *Account {
	acc := &Account{ID: a.ID, Name: a.Name, Attrs: decodeAttrs(a.Attrs)}
	for _, at := range a.Attrs {
		if at.Name == AttrMailAlias {
			acc.Aliases = append(acc.Aliases, at.Value)
		}
	}
	return acc
}

// DistributionList — список рассылки Zimbra.
type DistributionList struct {
	ID      string
	Name    string
	Attrs   map[string]string
	Members []string
}

type distributionListJSON struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Attrs   []attr    `json:"a"`
	Members []content `json:"dlm"`
}

func (d distributionListJSON) toDistributionList() *DistributionList {
	members := make([]string, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, m.Content)
	}
	return &DistributionList{ID: d.ID, Name: d.Name, Attrs: decodeAttrs(d.Attrs), Members: members}
}

// Folder — папка почтового ящика.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"l"`
	Path     string `json:"absFolderPath"`
	View     string `json:"view"`
}

// SearchResult — краткий итог SearchRequest.
type SearchResult struct {
	Conversations int
	Messages      int
	Contacts      int
	More          bool
}

type searchResponse struct {
	Conversations []json.RawMessage `json:"c"`
	Messages      []json.RawMessage `json:"m"`
	Contacts      []json.RawMessage `json:"cn"`
	More          bool              `json:"more"`
}
