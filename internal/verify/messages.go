package verify

// Texts shown to the cashier.
const (
	msgObservedRequired   = "Debes ingresar el monto recibido"
	msgAdjustAmountNeeded = "Debes ingresar un monto válido"
	msgBelowMinimum       = "El monto recibido (%s) es menor al mínimo permitido (%s). Debes rechazar la transacción."
	msgAdjustFirst        = "El monto recibido no coincide. Debes ajustar el monto antes de confirmar."
	msgUnknownRequest     = "No se encontraron los datos de la transacción. Actualiza la lista e intenta de nuevo."
	msgReasonRequired     = "Debes proporcionar un motivo de rechazo"
	msgDescriptionNeeded  = "Debes proporcionar una descripción"
	msgEvidenceTooLarge   = "La imagen no puede ser mayor a %dMB"
	msgEvidenceType       = "Tipo de archivo no permitido. Solo se permiten imágenes (JPG, PNG, WEBP, GIF)"
	msgEvidenceEmpty      = "La imagen está vacía"
	msgUploadFailed       = "Error al subir imagen: %v"
	msgUploadUnavailable  = "La carga de imágenes no está disponible"
	msgNoConnection       = "Error: No hay conexión disponible"
	msgNoResponse         = "El servidor no respondió a tiempo. Intenta nuevamente."
	msgRemoteError        = "Error: %s"
	msgUnknownError       = "Error desconocido"

	// DefaultAdjustReason is sent when the cashier gives no reason.
	DefaultAdjustReason = "Ajuste de monto por discrepancia"

	titleDepositCompleted    = "Depósito completado"
	titleWithdrawalCompleted = "Retiro completado"
	titleDepositRejected     = "Depósito rechazado"
	titleCancelled           = "Transacción cancelada"
	titleReferred            = "Transacción referida"

	msgCompleted        = "Transacción %s por %s. Nuevo saldo del jugador: %s"
	msgRejected         = "Transacción %s rechazada. Motivo: %s"
	msgCancelledPlayer  = "El jugador canceló la transacción %s"
	msgCancelledTimeout = "La transacción %s fue cancelada por inactividad (%.0f minutos)"
	msgReferred         = "La transacción %s fue referida a un administrador"
)
