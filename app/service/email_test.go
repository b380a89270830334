package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anotherme-social/identity-service/app/service"
)

type recordingMailer struct {
	mu       sync.Mutex
	failures int
	sent     []service.EmailJob
	attempts int
}

func (m *recordingMailer) Send(job service.EmailJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failures {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, job)
	return nil
}

func (m *recordingMailer) sentJobs() []service.EmailJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.EmailJob(nil), m.sent...)
}

func TestEmailDispatcher_DeliversSubmittedJob(t *testing.T) {
	mailer := &recordingMailer{}
	d := service.NewEmailDispatcher(mailer, 4, 1)
	d.Start()

	if ok := d.Submit(service.EmailJob{To: "alice@example.com", Subject: "hi"}); !ok {
		t.Fatal("submit should succeed with free queue capacity")
	}
	d.Shutdown()

	sent := mailer.sentJobs()
	if len(sent) != 1 {
		t.Fatalf("expected 1 sent email, got %d", len(sent))
	}
	if sent[0].To != "alice@example.com" {
		t.Fatalf("unexpected recipient: %q", sent[0].To)
	}
}

func TestEmailDispatcher_RetriesTransientFailures(t *testing.T) {
	mailer := &recordingMailer{failures: 2}
	d := service.NewEmailDispatcher(mailer, 4, 3, service.WithRetryBackoff(time.Millisecond))
	d.Start()

	d.Submit(service.EmailJob{To: "alice@example.com", Subject: "hi"})
	d.Shutdown()

	if len(mailer.sentJobs()) != 1 {
		t.Fatalf("expected delivery after retries, sent=%d", len(mailer.sentJobs()))
	}
	if mailer.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", mailer.attempts)
	}
}

func TestEmailDispatcher_GivesUpAfterRetries(t *testing.T) {
	mailer := &recordingMailer{failures: 100}
	d := service.NewEmailDispatcher(mailer, 4, 2, service.WithRetryBackoff(time.Millisecond))
	d.Start()

	d.Submit(service.EmailJob{To: "alice@example.com", Subject: "hi"})
	d.Shutdown()

	if len(mailer.sentJobs()) != 0 {
		t.Fatal("expected no delivery")
	}
	if mailer.attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", mailer.attempts)
	}
}

func TestEmailDispatcher_SubmitReportsFullQueue(t *testing.T) {
	mailer := &recordingMailer{}
	// Worker never started, so the queue fills up.
	d := service.NewEmailDispatcher(mailer, 1, 1)

	if ok := d.Submit(service.EmailJob{To: "a@example.com"}); !ok {
		t.Fatal("first submit should fit the queue")
	}
	if ok := d.Submit(service.EmailJob{To: "b@example.com"}); ok {
		t.Fatal("second submit should report a full queue")
	}
}

func TestSMTPMailerConstruction(t *testing.T) {
	cfg := testConfig()
	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.Port = 587
	mailer := service.NewSMTPMailer(cfg.SMTP)
	if mailer == nil {
		t.Fatal("expected mailer")
	}
}

func TestVerificationAndResetLinks(t *testing.T) {
	mailer := &recordingMailer{}
	d := service.NewEmailDispatcher(mailer, 8, 1)
	d.Start()
	defer d.Shutdown()

	db, mock, cleanup := newServiceMockDB(t)
	defer cleanup()
	svc := newAuthService(db, d, testConfig())

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("alice@example.com").
		WillReturnRows(userRows("user-1", "alice@example.com", "$2a$10$abcdefghijklmnopqrstuv", false))
	mock.ExpectExec(insertResetTokenQuery).
		WillReturnResult(newInsertResult(1))

	if err := svc.ForgotPassword(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	d.Shutdown()

	sent := mailer.sentJobs()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if !strings.Contains(sent[0].HTMLBody, "http://localhost:8080/pages/reset-password.html?token=") {
		t.Fatalf("reset link missing from body: %s", sent[0].HTMLBody)
	}
	if !strings.Contains(sent[0].TextBody, "/pages/reset-password.html?token=") {
		t.Fatal("reset link missing from text body")
	}
}
