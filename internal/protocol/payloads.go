package protocol

// Cashier is the authenticated teller's profile.
type Cashier struct {
	ID             string `json:"_id"`
	Email          string `json:"email,omitempty"`
	NombreCompleto string `json:"nombreCompleto,omitempty"`
}

// Player is the counterparty of a transaction.
type Player struct {
	ID         string `json:"_id,omitempty"`
	TelegramID string `json:"telegramId,omitempty"`
	Nombre     string `json:"nombre,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
}

// DisplayName returns the best available name for p, falling back to the id.
func (p Player) DisplayName(fallbackID string) string {
	switch {
	case p.Nombre != "":
		return p.Nombre
	case p.Nickname != "":
		return p.Nickname
	case fallbackID != "":
		return "Jugador " + fallbackID
	default:
		return "Jugador"
	}
}

// PaymentDetails is what the player reports having paid.
type PaymentDetails struct {
	Banco      string `json:"banco,omitempty"`
	Referencia string `json:"referencia,omitempty"`
	Telefono   string `json:"telefono,omitempty"`
	Fecha      string `json:"fecha,omitempty"`
	Monto      Minor  `json:"monto,omitempty"`
}

// Disconnect is the synthesized payload of KindDisconnect.
type Disconnect struct {
	Reason string `json:"reason"`
}

// AuthResult answers KindAuthenticate.
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NewDepositRequest announces a deposit waiting for a cashier. The id may be
// missing on early announcements.
type NewDepositRequest struct {
	TransaccionID string  `json:"transaccionId,omitempty"`
	JugadorID     string  `json:"jugadorId"`
	Monto         Minor   `json:"monto"`
	Jugador       *Player `json:"jugador,omitempty"`
}

// VerifyPaymentRequest asks the cashier to verify a reported payment.
type VerifyPaymentRequest struct {
	TransaccionID string         `json:"transaccionId"`
	Monto         Minor          `json:"monto"`
	Jugador       Player         `json:"jugador"`
	DatosPago     PaymentDetails `json:"datosPago"`
}

// DepositCompleted is the terminal success of a deposit.
type DepositCompleted struct {
	TransaccionID string `json:"transaccionId"`
	Monto         Minor  `json:"monto"`
	SaldoNuevo    Minor  `json:"saldoNuevo"`
}

// WithdrawalCompleted is the terminal success of a withdrawal.
type WithdrawalCompleted struct {
	TransaccionID string `json:"transaccionId"`
	Monto         Minor  `json:"monto"`
	SaldoNuevo    Minor  `json:"saldoNuevo"`
	Categoria     string `json:"categoria,omitempty"`
}

// DepositRejected is the terminal rejection of a deposit.
type DepositRejected struct {
	TransaccionID string `json:"transaccionId"`
	Motivo        string `json:"motivo,omitempty"`
}

// Cancelled is the payload of both cancellation kinds.
// TiempoTranscurrido is in minutes and only present on timeouts.
type Cancelled struct {
	TransaccionID      string  `json:"transaccionId"`
	TiempoTranscurrido float64 `json:"tiempoTranscurrido,omitempty"`
}

// Notification is a persistent notice pushed by the service.
type Notification struct {
	Tipo          string `json:"tipo"`
	Titulo        string `json:"titulo"`
	Mensaje       string `json:"mensaje"`
	TransaccionID string `json:"transaccionId,omitempty"`
}

// Notification types that must reach the cashier even when the app is not
// focused.
const (
	NotificationNewRequest  = "nueva_solicitud"
	NotificationPaymentMade = "pago_realizado"
)

// Critical reports whether n must be surfaced prominently.
func (n Notification) Critical() bool {
	return n.Tipo == NotificationNewRequest || n.Tipo == NotificationPaymentMade
}

// AmountAdjusted acknowledges an AdjustAmount.
type AmountAdjusted struct {
	TransaccionID string `json:"transaccionId"`
	MontoNuevo    Minor  `json:"montoNuevo,omitempty"`
}

// RemoteError reports a failed operation.
type RemoteError struct {
	TransaccionID string `json:"transaccionId,omitempty"`
	Message       string `json:"message"`
}

// LogoutAck answers KindLogout.
type LogoutAck struct {
	Success bool `json:"success"`
}

// Authenticate is sent right after the connection is established.
type Authenticate struct {
	Token string `json:"token"`
}

// ConfirmPayment confirms the transaction. MontoAjustado is set when the
// confirmation follows an amount adjustment.
type ConfirmPayment struct {
	TransaccionID string `json:"transaccionId"`
	MontoAjustado *Minor `json:"montoAjustado,omitempty"`
}

// RejectionReason is the structured reason attached to a rejection.
type RejectionReason struct {
	DescripcionDetallada string `json:"descripcionDetallada"`
	ImagenRechazoURL     string `json:"imagenRechazoUrl,omitempty"`
}

// RejectPayment rejects the transaction.
type RejectPayment struct {
	TransaccionID string          `json:"transaccionId"`
	Motivo        RejectionReason `json:"motivo"`
}

// AdjustAmount corrects the transaction amount to what was observed.
type AdjustAmount struct {
	TransaccionID string `json:"transaccionId"`
	MontoReal     Minor  `json:"montoReal"`
	Razon         string `json:"razon"`
}

// ReferToAdmin escalates the transaction to an administrator.
type ReferToAdmin struct {
	TransaccionID string `json:"transaccionId"`
	Descripcion   string `json:"descripcion"`
}

// Evidence is an image attached to a rejection.
type Evidence struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LoginResult is returned by the backend login endpoint.
type LoginResult struct {
	Token   string  `json:"token"`
	Cashier Cashier `json:"cajero"`
}

// TransactionSummary is one row of the pending transactions list.
type TransactionSummary struct {
	ID        string `json:"_id"`
	Tipo      string `json:"tipo"`
	Estado    string `json:"estado"`
	Monto     Minor  `json:"monto"`
	Jugador   Player `json:"jugadorId"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// TransactionDetail is the full record used to open a verification from the
// list instead of from a pushed event.
type TransactionDetail struct {
	ID        string         `json:"_id"`
	Tipo      string         `json:"tipo"`
	Estado    string         `json:"estado"`
	Monto     Minor          `json:"monto"`
	Jugador   Player         `json:"jugadorId"`
	DatosPago PaymentDetails `json:"infoPago"`
}

// VerifyRequest converts a fetched detail into the request shape the
// verification engine consumes.
func (d TransactionDetail) VerifyRequest() VerifyPaymentRequest {
	return VerifyPaymentRequest{
		TransaccionID: d.ID,
		Monto:         d.Monto,
		Jugador:       d.Jugador,
		DatosPago:     d.DatosPago,
	}
}
