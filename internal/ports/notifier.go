package ports

import (
	"context"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

// Notifier presenta el resultado de cada tick del agente al usuario.
type Notifier interface {
	// NotifyTick muestra los trades abiertos y resueltos en el tick.
	// En la implementación de consola, imprime una tabla formateada.
	NotifyTick(ctx context.Context, report domain.TickReport) error
}
