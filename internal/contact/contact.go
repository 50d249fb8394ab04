// Package contact handles the public contact form: validation, hCaptcha
// verification and delivery of the admin and confirmation mails.
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"
)

const (
	MsgRequired      = "Todos los campos son obligatorios."
	MsgInvalidEmail  = "Correo electrónico inválido."
	MsgCaptchaNeeded = "Por favor completa el CAPTCHA."
	MsgCaptchaBad    = "CAPTCHA inválido."
	MsgSentConfirmed = "Mensaje enviado correctamente. Recibirás una confirmación por email."
	MsgSent          = "Mensaje enviado correctamente."
	MsgSendFailed    = "Error al enviar el mensaje. Inténtalo más tarde."
	MsgMethod        = "Método no permitido"
)

const maxFormBytes = 1 << 20

type Form struct {
	Nombre    string
	Apellidos string
	Email     string
	Mensaje   string
	Captcha   string
	RemoteIP  string
}

// ParseForm reads a multipart or urlencoded contact submission.
func ParseForm(r *http.Request) (Form, error) {
	ct := r.Header.Get("Content-Type")
	var err error
	if strings.HasPrefix(ct, "multipart/") {
		err = r.ParseMultipartForm(maxFormBytes)
	} else {
		r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
		err = r.ParseForm()
	}
	if err != nil {
		return Form{}, fmt.Errorf("parse contact form: %w", err)
	}
	return Form{
		Nombre:    strings.TrimSpace(r.FormValue("nombre")),
		Apellidos: strings.TrimSpace(r.FormValue("apellidos")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		Mensaje:   strings.TrimSpace(r.FormValue("mensaje")),
		Captcha:   r.FormValue("h-captcha-response"),
		RemoteIP:  clientIP(r),
	}, nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

// Result is the JSON body returned to the form.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Verifier checks a captcha token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type Message struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type Service struct {
	log      *slog.Logger
	verifier Verifier
	mailer   Mailer
	to       string
	now      func() time.Time
}

// NewService delivers admin mail to adminTo.
func NewService(log *slog.Logger, v Verifier, m Mailer, adminTo string) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, verifier: v, mailer: m, to: adminTo, now: time.Now}
}

// Validate checks required fields and the address syntax. It returns the
// user-facing message, empty when the form is acceptable.
func Validate(f Form) string {
	if f.Nombre == "" || f.Apellidos == "" || f.Email == "" || f.Mensaje == "" {
		return MsgRequired
	}
	if !validEmail(f.Email) {
		return MsgInvalidEmail
	}
	if strings.TrimSpace(f.Captcha) == "" {
		return MsgCaptchaNeeded
	}
	return ""
}

// validEmail accepts a bare address whose domain has a dot.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	_, domain, _ := strings.Cut(s, "@")
	return strings.Contains(strings.Trim(domain, "."), ".")
}

// Submit runs the whole flow and returns the body plus HTTP status.
func (s *Service) Submit(ctx context.Context, f Form) (Result, int) {
	if msg := Validate(f); msg != "" {
		s.log.Warn("contact form rejected", "reason", msg)
		return Result{Message: msg}, http.StatusBadRequest
	}

	ok, err := s.verifier.Verify(ctx, f.Captcha, f.RemoteIP)
	if err != nil {
		s.log.Error("captcha verification failed", "err", err)
	}
	if err != nil || !ok {
		return Result{Message: MsgCaptchaBad}, http.StatusBadRequest
	}

	sent := s.now()
	adminBody, err := renderAdmin(f, sent)
	if err != nil {
		s.log.Error("render admin mail", "err", err)
		return Result{Message: MsgSendFailed}, http.StatusInternalServerError
	}
	if err := s.mailer.Send(ctx, Message{
		To:      s.to,
		ReplyTo: f.Email,
		Subject: "Nuevo mensaje de contacto - RurAirConnect",
		HTML:    adminBody,
	}); err != nil {
		s.log.Error("admin mail failed", "err", err)
		return Result{Message: MsgSendFailed}, http.StatusInternalServerError
	}

	userBody, err := renderConfirmation(f, sent)
	if err == nil {
		err = s.mailer.Send(ctx, Message{
			To:      f.Email,
			Subject: "Confirmación de mensaje - RurAirConnect",
			HTML:    userBody,
		})
	}
	if err != nil {
		s.log.Warn("confirmation mail failed", "err", err)
		return Result{Success: true, Message: MsgSent}, http.StatusOK
	}
	return Result{Success: true, Message: MsgSentConfirmed}, http.StatusOK
}
