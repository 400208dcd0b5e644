package bot

import (
	"fmt"
	"strings"

	"salon/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgWelcome = "¡Hola! 💇 Bienvenida al programa de fidelidad.\n\n" +
		"Comparte tu teléfono con el botón de abajo para ver tu tarjeta o registrarte."
	msgHelp           = "Usa los botones de abajo: comparte tu teléfono, revisa tu tarjeta o consulta la próxima hora libre."
	msgCancelled      = "Listo, cancelamos el registro."
	msgOwnContact     = "Por favor comparte *tu propio* número con el botón 📱."
	msgBadName        = "Escribe tu nombre (máximo 80 caracteres)."
	msgTerms          = "Para registrarte debes aceptar los términos del programa: guardamos tu nombre y teléfono para llevar tus visitas y beneficios. ¿Aceptas?"
	msgTermsDeclined  = "Entendido. Sin aceptar los términos no podemos registrarte."
	msgRegistered     = "🎉 ¡Registro completo!"
	msgSessionExpired = "La sesión expiró. Comparte tu teléfono de nuevo para continuar."
	msgSlowDown       = "⚠️ Estás enviando mensajes muy seguido. Espera un momento."
)

func escape(text string) string {
	return tgbotapi.EscapeText(models.ParseModeMarkdown, text)
}

func askNameText(suggested string) string {
	if suggested == "" {
		return "No encontramos tu teléfono. ¿Cómo te llamas?"
	}
	return fmt.Sprintf("No encontramos tu teléfono. ¿Cómo te llamas? (por ejemplo: %s)", escape(suggested))
}

func nextSlotText(slot string) string {
	return fmt.Sprintf("🕐 La próxima hora disponible hoy es a las *%s*.", slot)
}

// formatCard renders the loyalty card as Markdown.
func formatCard(card *models.ClientCard) string {
	c := card.Client
	var sb strings.Builder

	fmt.Fprintf(&sb, "*%s*\n", escape(c.Name))
	fmt.Fprintf(&sb, "Nivel: *%s* · %d visitas\n", card.Tier, c.Visits)
	if card.NextThreshold > 0 {
		fmt.Fprintf(&sb, "Próxima meta: %d visitas\n", card.NextThreshold)
	}

	sb.WriteString("\nSellos: ")
	for _, s := range card.Stamps.Stamps {
		if s.Filled {
			sb.WriteString("●")
		} else {
			sb.WriteString("○")
		}
	}
	fmt.Fprintf(&sb, " (%d/%d)\n", card.Stamps.Filled, len(card.Stamps.Stamps))

	if c.DiscountAvailable {
		sb.WriteString("🎁 Tienes un *descuento* disponible\n")
	} else {
		fmt.Fprintf(&sb, "Faltan %d servicios para el descuento\n", card.Stamps.RemainingToDiscount)
	}
	if c.FreeCutAvailable {
		sb.WriteString("✂️ Tienes un *corte gratis* disponible\n")
	} else {
		fmt.Fprintf(&sb, "Faltan %d servicios para el corte gratis\n", card.Stamps.RemainingToFreeCut)
	}
	return strings.TrimRight(sb.String(), "\n")
}
