package client

const (
	titleSessionStarted = "Sesión iniciada"
	msgWelcome          = "Bienvenido %s"
	titleSessionClosed  = "Sesión cerrada"
	msgLoggedOut        = "Has cerrado sesión correctamente"
	msgSessionReplaced  = "Tu sesión fue cerrada porque iniciaste sesión en otro lugar"
	msgSessionExpired   = "Tu sesión ha expirado. Por favor, inicia sesión nuevamente."
	msgIncompleteFields = "Por favor, completa todos los campos"
	msgLoginFailed      = "Error al iniciar sesión: %v"
	msgDetailFailed     = "No se pudo cargar la transacción: %v"
	titleAuthFailed     = "Error de autenticación"
	titleNotification   = "Notificación"
)
