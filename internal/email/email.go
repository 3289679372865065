// Package email provides email sending functionality
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"
	"sync"
	"time"
)

// Config holds email configuration
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	FromName    string
	UseTLS      bool
	FrontendURL string
}

// Service renders templates and delivers them over SMTP. After
// StartWorkers, deliveries are queued and retried in the background.
type Service struct {
	config    *Config
	templates map[string]*template.Template

	queue chan *queuedEmail
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewService creates a new email service
func NewService(config *Config) *Service {
	s := &Service{
		config:    config,
		templates: make(map[string]*template.Template),
	}
	s.loadTemplates()
	return s
}

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

const layout = `
{{define "layout"}}<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1f2937; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .card { background: white; border-radius: 8px; padding: 16px; margin: 16px 0; }
        .btn { display: inline-block; background: #f59e0b; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <div class="header"><h2>{{template "title" .}}</h2></div>
    <div class="content">{{template "body" .}}</div>
    <div class="footer">Together Culture</div>
</div>
</body>
</html>{{end}}`

var pages = map[string]string{
	"membership_approved": `
{{define "title"}}Your membership has been approved{{end}}
{{define "body"}}
<p>Hello {{.Name}},</p>
<p>Your request to become a <strong>{{.Tier}}</strong> has been approved.</p>
<a href="{{.URL}}" class="btn">View your membership</a>
{{end}}`,

	"event_ticket": `
{{define "title"}}You're registered: {{.EventTitle}}{{end}}
{{define "body"}}
<p>Hello {{.Name}},</p>
<div class="card">
    <p><strong>{{.EventTitle}}</strong></p>
    <p>{{.StartsAt}}{{if .Location}} at {{.Location}}{{end}}</p>
    <p>Ticket number: <strong>{{.TicketNumber}}</strong></p>
</div>
<p>Show this ticket number when you arrive.</p>
{{end}}`,

	"event_reminder": `
{{define "title"}}Reminder: {{.EventTitle}}{{end}}
{{define "body"}}
<p>Hello {{.Name}},</p>
<p><strong>{{.EventTitle}}</strong> starts {{.StartsAt}}{{if .Location}} at {{.Location}}{{end}}.</p>
{{if .TicketNumber}}<p>Your ticket number is <strong>{{.TicketNumber}}</strong>.</p>{{end}}
{{end}}`,

	"password_reset": `
{{define "title"}}Reset your password{{end}}
{{define "body"}}
<p>Hello {{.Name}},</p>
<p>Someone asked to reset the password for your account. The link below is valid for {{.ValidFor}}.</p>
<a href="{{.URL}}" class="btn">Choose a new password</a>
<p style="font-size: 14px; color: #6b7280;">If this wasn't you, ignore this email.</p>
{{end}}`,
}

// loadTemplates loads all email templates
func (s *Service) loadTemplates() {
	for name, page := range pages {
		t := template.Must(template.New(name).Parse(layout))
		s.templates[name] = template.Must(t.Parse(page))
	}
}

// Send sends an email
func (s *Service) Send(email *Email) error {
	if s.config.Host == "" {
		log.Println("[Email] Not configured, skipping send")
		return nil
	}

	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if email.HTMLBody != "" {
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		msg.WriteString(email.HTMLBody)
	} else {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		msg.WriteString(email.Body)
	}

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	if !s.config.UseTLS {
		return smtp.SendMail(addr, auth, s.config.From, email.To, msg.Bytes())
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("TLS dial error: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("SMTP client error: %w", err)
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("auth error: %w", err)
	}
	if err = client.Mail(s.config.From); err != nil {
		return fmt.Errorf("mail error: %w", err)
	}
	for _, rcpt := range email.To {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt error: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data error: %w", err)
	}
	if _, err = w.Write(msg.Bytes()); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close error: %w", err)
	}
	return client.Quit()
}

// Render executes a named template.
func (s *Service) Render(templateName string, data interface{}) (string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", fmt.Errorf("template not found: %s", templateName)
	}
	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}

// SendWithTemplate renders and delivers, through the queue when workers run.
func (s *Service) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	if s.queue != nil {
		s.queue <- &queuedEmail{to: to, subject: subject, templateName: templateName, data: data}
		return nil
	}
	return s.deliver(to, subject, templateName, data)
}

func (s *Service) deliver(to []string, subject, templateName string, data interface{}) error {
	body, err := s.Render(templateName, data)
	if err != nil {
		return err
	}
	return s.Send(&Email{To: to, Subject: subject, HTMLBody: body})
}

func (s *Service) link(path string) string {
	return strings.TrimRight(s.config.FrontendURL, "/") + path
}

// ============================================
// Convenience Methods
// ============================================

type MembershipApprovedData struct {
	Name string
	Tier string
	URL  string
}

func (s *Service) SendMembershipApproved(to, name, tier string) error {
	return s.SendWithTemplate([]string{to}, "Your membership has been approved", "membership_approved",
		MembershipApprovedData{Name: name, Tier: tier, URL: s.link("/membership")})
}

type EventTicketData struct {
	Name         string
	EventTitle   string
	StartsAt     string
	Location     string
	TicketNumber string
}

func (s *Service) SendEventTicket(to string, data EventTicketData) error {
	return s.SendWithTemplate([]string{to}, "Your ticket for "+data.EventTitle, "event_ticket", data)
}

func (s *Service) SendEventReminder(to string, data EventTicketData) error {
	return s.SendWithTemplate([]string{to}, "Reminder: "+data.EventTitle, "event_reminder", data)
}

type PasswordResetData struct {
	Name     string
	URL      string
	ValidFor string
}

func (s *Service) SendPasswordReset(to, name, token string, validFor time.Duration) error {
	return s.SendWithTemplate([]string{to}, "Reset your password", "password_reset", PasswordResetData{
		Name:     name,
		URL:      s.link("/reset-password?token=" + token),
		ValidFor: validFor.String(),
	})
}

// ============================================
// Async queue
// ============================================

type queuedEmail struct {
	to           []string
	subject      string
	templateName string
	data         interface{}
	retries      int
}

// StartWorkers switches the service to queued delivery.
func (s *Service) StartWorkers(workers int) {
	s.queue = make(chan *queuedEmail, 1000)
	s.done = make(chan struct{})
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case email := <-s.queue:
			err := s.deliver(email.to, email.subject, email.templateName, email.data)
			if err == nil {
				continue
			}
			log.Printf("[Email] Send error (%s): %v", email.templateName, err)
			if email.retries < 3 {
				email.retries++
				time.Sleep(time.Second * time.Duration(email.retries*2))
				select {
				case s.queue <- email:
				default:
					log.Printf("[Email] Queue full, dropping %s", email.templateName)
				}
			}
		case <-s.done:
			return
		}
	}
}

// Stop stops the workers. Mail still queued is dropped.
func (s *Service) Stop() {
	if s.done != nil {
		close(s.done)
		s.wg.Wait()
	}
}
