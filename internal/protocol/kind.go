package protocol

// Kind identifies a protocol message.
type Kind string

// Inbound kinds, delivered by the connection supervisor.
const (
	// KindConnect and KindDisconnect are synthesized locally from transport
	// state; the service never sends them.
	KindConnect    Kind = "connect"
	KindDisconnect Kind = "disconnect"

	KindAuthResult          Kind = "auth-result"
	KindNewDepositRequest   Kind = "nueva-solicitud-deposito"
	KindVerifyPayment       Kind = "verificar-pago"
	KindDepositCompleted    Kind = "deposito-completado"
	KindWithdrawalCompleted Kind = "retiro-completado"
	KindDepositRejected     Kind = "deposito-rechazado"
	KindCancelledByPlayer   Kind = "transaccion-cancelada-por-jugador"
	KindCancelledByTimeout  Kind = "transaccion-cancelada-por-timeout"
	KindNotification        Kind = "nueva-notificacion"
	KindAmountAdjusted      Kind = "monto-ajustado"
	KindError               Kind = "error"
	KindSessionReplaced     Kind = "session-replaced"
	KindAck                 Kind = "ack"
)

// Outbound kinds, emitted by the client.
const (
	KindAuthenticate   Kind = "autenticar-cajero"
	KindLogout         Kind = "logout-cajero"
	KindConfirmPayment Kind = "confirmar-pago-cajero"
	KindRejectPayment  Kind = "rechazar-pago-cajero"
	KindAdjustAmount   Kind = "ajustar-monto-deposito"
	KindReferToAdmin   Kind = "referir-a-admin"
)

var inboundKinds = map[Kind]struct{}{
	KindConnect:             {},
	KindDisconnect:          {},
	KindAuthResult:          {},
	KindNewDepositRequest:   {},
	KindVerifyPayment:       {},
	KindDepositCompleted:    {},
	KindWithdrawalCompleted: {},
	KindDepositRejected:     {},
	KindCancelledByPlayer:   {},
	KindCancelledByTimeout:  {},
	KindNotification:        {},
	KindAmountAdjusted:      {},
	KindError:               {},
	KindSessionReplaced:     {},
}

// InboundKinds returns every kind a handler can be registered for.
func InboundKinds() []Kind {
	return []Kind{
		KindConnect,
		KindDisconnect,
		KindAuthResult,
		KindNewDepositRequest,
		KindVerifyPayment,
		KindDepositCompleted,
		KindWithdrawalCompleted,
		KindDepositRejected,
		KindCancelledByPlayer,
		KindCancelledByTimeout,
		KindNotification,
		KindAmountAdjusted,
		KindError,
		KindSessionReplaced,
	}
}

// IsInbound reports whether k is a kind the client accepts from the service.
func (k Kind) IsInbound() bool {
	_, ok := inboundKinds[k]
	return ok
}

func (k Kind) String() string { return string(k) }
