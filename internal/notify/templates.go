// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/taibuivan/whiphelmets/internal/events"
)

//go:embed templates/*.html
var templateFS embed.FS

// # Plain Text Copy

// Subjects and text bodies use {{tag}} placeholders filled by fasttemplate.
var (
	welcomeSubject = fasttemplate.New("¡Bienvenido a WHIP HELMETS! 🏍️", "{{", "}}")
	welcomeText    = fasttemplate.New(`¡Bienvenido a WHIP HELMETS, {{name}}!

Gracias por registrarte en nuestra tienda de cascos.
{{verify_block}}
¿Qué puedes hacer ahora?
- Explorar nuestra colección de cascos nuevos y usados
- Encontrar el casco perfecto para tu estilo
- Realizar pedidos con envío a todo el país

Nuestros cascos están 100% homologados y en perfecto estado.

¡Gracias por elegir WHIP HELMETS!
`, "{{", "}}")

	resetSubject = fasttemplate.New("Recuperar Contraseña - WHIP HELMETS", "{{", "}}")
	resetText    = fasttemplate.New(`Recuperar Contraseña - WHIP HELMETS

Hola {{name}},

Recibimos una solicitud para restablecer la contraseña de tu cuenta.

Para crear una nueva contraseña, visita este enlace:
{{reset_url}}

Este enlace expira en 1 hora.

Si no solicitaste este cambio, puedes ignorar este email.

WHIP HELMETS
`, "{{", "}}")

	orderSubject = fasttemplate.New("Confirmación de Pedido #{{order_number}} - WHIP HELMETS", "{{", "}}")
	orderText    = fasttemplate.New(`Confirmación de Pedido #{{order_number}} - WHIP HELMETS

¡Gracias por tu compra, {{name}}!

Tu pedido fue registrado y está siendo procesado.

Detalles del Pedido:
- Número: #{{order_number}}
- Fecha: {{placed_at}}
- Total: ${{total}}

Productos:
{{items}}{{transfer_block}}{{access_block}}
Próximos Pasos:
Te contactaremos pronto para coordinar el envío de tu pedido.

WHIP HELMETS
`, "{{", "}}")

	statusSubject = fasttemplate.New("Tu pedido #{{order_number}} está {{status}} - WHIP HELMETS", "{{", "}}")
	statusText    = fasttemplate.New(`Hola {{name}},

El estado de tu pedido #{{order_number}} cambió a: {{status}}.

WHIP HELMETS
`, "{{", "}}")
)

// statusLabels holds the customer-facing name of each order status.
var statusLabels = map[string]string{
	"pending":          "pendiente de pago",
	"pending_transfer": "pendiente de transferencia",
	"paid":             "pagado",
	"shipped":          "enviado",
	"delivered":        "entregado",
	"cancelled":        "cancelado",
}

func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// # Renderer

// Renderer builds the message for each event.
type Renderer struct {
	baseURL  string
	pages    *template.Template
	location *time.Location
}

// NewRenderer parses the embedded HTML templates. baseURL is the storefront
// origin that links in the emails point to.
func NewRenderer(baseURL string) (*Renderer, error) {
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("notify_templates_parse_failed: %w", err)
	}

	location, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		location = time.UTC
	}

	return &Renderer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pages:    pages,
		location: location,
	}, nil
}

func (renderer *Renderer) link(path string, query url.Values) string {
	return renderer.baseURL + path + "?" + query.Encode()
}

func (renderer *Renderer) html(name string, data any) (string, error) {
	var buffer bytes.Buffer
	if err := renderer.pages.ExecuteTemplate(&buffer, name, data); err != nil {
		return "", fmt.Errorf("notify_render_%s_failed: %w", strings.TrimSuffix(name, ".html"), err)
	}
	return buffer.String(), nil
}

// Welcome renders the registration email. It carries the verification link
// when the event has a token.
func (renderer *Renderer) Welcome(event events.UserRegistered) (Message, error) {
	name := displayName(event.FirstName, event.Username)

	verifyURL := ""
	verifyBlock := ""
	if event.VerificationToken != "" {
		verifyURL = renderer.link("/verify-email.html", url.Values{"token": {event.VerificationToken}})
		verifyBlock = "\nConfirmá tu email visitando este enlace (expira en 24 horas):\n" + verifyURL + "\n"
	}

	body, err := renderer.html("welcome.html", struct {
		Name      string
		VerifyURL string
	}{name, verifyURL})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      event.Email,
		Subject: welcomeSubject.ExecuteString(nil),
		HTML:    body,
		Text:    welcomeText.ExecuteString(map[string]any{"name": name, "verify_block": verifyBlock}),
	}, nil
}

// PasswordReset renders the reset-link email.
func (renderer *Renderer) PasswordReset(event events.PasswordResetRequested) (Message, error) {
	name := displayName(event.FirstName, event.Email)
	resetURL := renderer.link("/reset-password.html", url.Values{"token": {event.ResetToken}})

	body, err := renderer.html("password_reset.html", struct {
		Name     string
		ResetURL string
	}{name, resetURL})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      event.Email,
		Subject: resetSubject.ExecuteString(nil),
		HTML:    body,
		Text:    resetText.ExecuteString(map[string]any{"name": name, "reset_url": resetURL}),
	}, nil
}

type orderItemView struct {
	Name      string
	Size      string
	Quantity  int
	UnitPrice string
}

// OrderPlaced renders the order confirmation. Transfer orders include the
// verification code, guest orders include the signed access link.
func (renderer *Renderer) OrderPlaced(event events.OrderPlaced) (Message, error) {
	view := struct {
		Number           string
		Name             string
		PlacedAt         string
		Total            string
		Items            []orderItemView
		Transfer         bool
		VerificationCode string
		AccessURL        string
	}{
		Number:           event.OrderNumber,
		Name:             event.CustomerName,
		PlacedAt:         renderer.formatTime(event.PlacedAt),
		Total:            event.TotalAmount,
		Transfer:         event.PaymentMethod == "transfer" && event.VerificationCode != "",
		VerificationCode: event.VerificationCode,
	}
	if event.AccessToken != "" {
		view.AccessURL = renderer.link("/order-status.html", url.Values{
			"order":        {event.OrderNumber},
			"access_token": {event.AccessToken},
		})
	}

	var items strings.Builder
	for _, item := range event.Items {
		view.Items = append(view.Items, orderItemView{item.ProductName, item.Size, item.Quantity, item.UnitPrice})

		items.WriteString("- " + item.ProductName)
		if item.Size != "" {
			items.WriteString(" (Talle: " + item.Size + ")")
		}
		items.WriteString(" x" + strconv.Itoa(item.Quantity) + " - $" + item.UnitPrice + "\n")
	}

	body, err := renderer.html("order_placed.html", view)
	if err != nil {
		return Message{}, err
	}

	transferBlock := ""
	if view.Transfer {
		transferBlock = "\nPago por transferencia:\nIncluí el código " + view.VerificationCode + " en el concepto de la transferencia.\n"
	}
	accessBlock := ""
	if view.AccessURL != "" {
		accessBlock = "\nSeguí tu pedido en:\n" + view.AccessURL + "\n"
	}

	tags := map[string]any{
		"order_number":   event.OrderNumber,
		"name":           event.CustomerName,
		"placed_at":      view.PlacedAt,
		"total":          event.TotalAmount,
		"items":          items.String(),
		"transfer_block": transferBlock,
		"access_block":   accessBlock,
	}
	return Message{
		To:      event.CustomerEmail,
		Subject: orderSubject.ExecuteString(tags),
		HTML:    body,
		Text:    orderText.ExecuteString(tags),
	}, nil
}

// OrderStatusChanged renders the status update email.
func (renderer *Renderer) OrderStatusChanged(event events.OrderStatusChanged) (Message, error) {
	label := statusLabel(event.To)

	body, err := renderer.html("order_status.html", struct {
		Number string
		Name   string
		Status string
	}{event.OrderNumber, event.CustomerName, label})
	if err != nil {
		return Message{}, err
	}

	tags := map[string]any{
		"order_number": event.OrderNumber,
		"name":         event.CustomerName,
		"status":       label,
	}
	return Message{
		To:      event.CustomerEmail,
		Subject: statusSubject.ExecuteString(tags),
		HTML:    body,
		Text:    statusText.ExecuteString(tags),
	}, nil
}

func (renderer *Renderer) formatTime(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return at.In(renderer.location).Format("02/01/2006 15:04")
}

func displayName(first, fallback string) string {
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return fallback
}
