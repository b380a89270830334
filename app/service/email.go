package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/anotherme-social/identity-service/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type EmailJob struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

type Mailer interface {
	Send(job EmailJob) error
}

type SMTPMailer struct {
	dialer    *gomail.Dialer
	fromName  string
	fromEmail string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
	}
}

func (m *SMTPMailer) Send(job EmailJob) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, m.fromName)
	msg.SetHeader("To", job.To)
	msg.SetHeader("Subject", job.Subject)
	msg.SetBody("text/plain", job.TextBody)
	msg.AddAlternative("text/html", job.HTMLBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", job.To, err)
	}
	return nil
}

// EmailDispatcher decouples email delivery from the request path. Jobs
// are queued on a bounded channel and sent by a background worker with
// retries; the token row committed by the caller remains the source of
// truth, so a lost email is recoverable by requesting a new token.
type EmailDispatcher struct {
	mailer  Mailer
	jobs    chan EmailJob
	retries int
	backoff time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

type EmailDispatcherOption func(*EmailDispatcher)

func NewEmailDispatcher(mailer Mailer, queueSize, retries int, opts ...EmailDispatcherOption) *EmailDispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if retries <= 0 {
		retries = 1
	}
	d := &EmailDispatcher{
		mailer:  mailer,
		jobs:    make(chan EmailJob, queueSize),
		retries: retries,
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithRetryBackoff(backoff time.Duration) EmailDispatcherOption {
	return func(d *EmailDispatcher) {
		d.backoff = backoff
	}
}

func (d *EmailDispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Submit enqueues a job without blocking. A full queue drops the job
// and reports it; callers treat delivery as best-effort either way.
func (d *EmailDispatcher) Submit(job EmailJob) bool {
	select {
	case d.jobs <- job:
		return true
	default:
		logrus.WithField("to", job.To).Warn("Email queue full, dropping job")
		return false
	}
}

// Shutdown stops accepting jobs and waits for the worker to drain the
// queue.
func (d *EmailDispatcher) Shutdown() {
	d.once.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

func (d *EmailDispatcher) run() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.deliver(job)
	}
}

func (d *EmailDispatcher) deliver(job EmailJob) {
	var err error
	for attempt := 1; attempt <= d.retries; attempt++ {
		if err = d.mailer.Send(job); err == nil {
			logrus.WithField("to", job.To).Debug("Email sent")
			return
		}
		if attempt < d.retries {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"to":      job.To,
		"subject": job.Subject,
	}).Error("Email delivery failed after retries")
}

func verificationEmail(frontendBaseURL, to, token string) EmailJob {
	link := fmt.Sprintf("%s/pages/verify-email.html?token=%s", frontendBaseURL, token)
	return EmailJob{
		To:      to,
		Subject: "Verify your email address",
		HTMLBody: fmt.Sprintf(`
			<h2>Welcome to AnotherMe!</h2>
			<p>Please confirm your email address to activate your account.</p>
			<p><a href="%s">Verify my email</a></p>
			<p>This link expires in 24 hours. If you did not create an account, you can ignore this email.</p>
		`, link),
		TextBody: fmt.Sprintf(
			"Welcome to AnotherMe!\n\nPlease confirm your email address by opening this link:\n%s\n\nThis link expires in 24 hours. If you did not create an account, you can ignore this email.\n",
			link,
		),
	}
}

func passwordResetEmail(frontendBaseURL, to, token string) EmailJob {
	link := fmt.Sprintf("%s/pages/reset-password.html?token=%s", frontendBaseURL, token)
	return EmailJob{
		To:      to,
		Subject: "Reset your password",
		HTMLBody: fmt.Sprintf(`
			<h3>Password reset requested</h3>
			<p>We received a request to reset the password for your account.</p>
			<p><a href="%s">Reset my password</a></p>
			<p>This link expires in 1 hour. If you did not request this change, you can ignore this email.</p>
		`, link),
		TextBody: fmt.Sprintf(
			"We received a request to reset the password for your account.\n\nOpen this link to choose a new password:\n%s\n\nThis link expires in 1 hour. If you did not request this change, you can ignore this email.\n",
			link,
		),
	}
}
