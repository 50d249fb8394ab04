package contact

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var adminTmpl = template.Must(template.New("admin").Parse(`<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2 style="color: #2c5530;">Nuevo mensaje de contacto</h2>
	<div style="background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
		<p><strong>Nombre:</strong> {{.Nombre}} {{.Apellidos}}</p>
		<p><strong>Correo:</strong> {{.Email}}</p>
		<p><strong>Fecha:</strong> {{.Date}}</p>
	</div>
	<div style="background: #fff; padding: 20px; border-left: 4px solid #2c5530;">
		<h3>Mensaje:</h3>
		<p>{{range $i, $l := .Lines}}{{if $i}}<br>{{end}}{{$l}}{{end}}</p>
	</div>
	<hr style="margin: 30px 0;">
	<p style="color: #666; font-size: 12px;">Enviado desde el formulario de contacto de RurAirConnect</p>
</body>
</html>`))

var confirmTmpl = template.Must(template.New("confirm").Parse(`<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2 style="color: #2c5530;">¡Gracias por contactarnos!</h2>
	<p>Hola <strong>{{.Nombre}}</strong>,</p>
	<p>Hemos recibido tu mensaje y te responderemos lo antes posible.</p>
	<div style="background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
		<h3 style="color: #2c5530;">Resumen de tu mensaje:</h3>
		<p><strong>Nombre:</strong> {{.Nombre}} {{.Apellidos}}</p>
		<p><strong>Correo:</strong> {{.Email}}</p>
		<p><strong>Fecha:</strong> {{.Date}}</p>
	</div>
	<div style="background: #fff; padding: 20px; border-left: 4px solid #2c5530;">
		<h4>Tu mensaje:</h4>
		<p>{{range $i, $l := .Lines}}{{if $i}}<br>{{end}}{{$l}}{{end}}</p>
	</div>
	<div style="background: #e8f5e8; padding: 15px; border-radius: 8px; margin: 20px 0;">
		<p style="margin: 0;"><strong>Tiempo de respuesta estimado:</strong> 24-48 horas</p>
	</div>
	<hr style="margin: 30px 0;">
	<p style="color: #2c5530;">Saludos,<br><strong>Equipo RurAirConnect</strong></p>
	<p style="color: #666; font-size: 12px;">Este es un mensaje automático, no responder a este email.</p>
</body>
</html>`))

type mailData struct {
	Nombre    string
	Apellidos string
	Email     string
	Date      string
	Lines     []string
}

func dataFor(f Form, at time.Time) mailData {
	msg := strings.ReplaceAll(f.Mensaje, "\r\n", "\n")
	return mailData{
		Nombre:    f.Nombre,
		Apellidos: f.Apellidos,
		Email:     f.Email,
		Date:      at.Format("02/01/2006 15:04:05"),
		Lines:     strings.Split(msg, "\n"),
	}
}

func render(t *template.Template, f Form, at time.Time) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, dataFor(f, at)); err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderAdmin(f Form, at time.Time) (string, error)        { return render(adminTmpl, f, at) }
func renderConfirmation(f Form, at time.Time) (string, error) { return render(confirmTmpl, f, at) }
