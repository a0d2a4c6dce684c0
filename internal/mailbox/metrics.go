package mailbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zs_rpc_requests_total",
		Help: "Количество SOAP-операций Zimbra по результату",
	}, []string{"operation", "outcome"})

	rpcReauthTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zs_rpc_reauth_total",
		Help: "Количество повторов операции после повторной аутентификации",
	}, []string{"reason"})

	authRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zs_auth_requests_total",
		Help: "Количество запросов AuthRequest к Zimbra",
	}, []string{"kind"})

	tokenCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zs_token_cache_hits_total",
		Help: "Количество токенов, выданных из кэша",
	})
)
