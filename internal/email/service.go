// Package email sends transactional mail. Resend is used in production and
// MockEmailService in tests and --no-email runs.
package email

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kuitang/yanote/internal/obs"
)

// OutboxDirEnv names the directory MockEmailService copies messages to.
const OutboxDirEnv = "MAIL_OUTBOX_DIR"

// EmailService sends one templated email.
type EmailService interface {
	Send(to, templateName string, data any) error
}

// Message is an email as MockEmailService captured it.
type Message struct {
	To       string `json:"to"`
	Template string `json:"template"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	Data     any    `json:"-"`
}

// MockEmailService renders emails and keeps them in memory instead of
// sending them. With MAIL_OUTBOX_DIR set, each message is also written
// there as <n>-<template>.json so a developer can open the links.
type MockEmailService struct {
	mu        sync.Mutex
	sent      []Message
	outboxDir string
}

func NewMockEmailService() *MockEmailService {
	m := &MockEmailService{outboxDir: os.Getenv(OutboxDirEnv)}
	if m.outboxDir != "" {
		if err := os.MkdirAll(m.outboxDir, 0o755); err != nil {
			obs.Pkg("email").Warn("mock_outbox_unavailable", "dir", m.outboxDir, "error", err)
			m.outboxDir = ""
		}
	}
	return m
}

// Send renders the template, so template errors surface in tests exactly
// as they would with Resend.
func (m *MockEmailService) Send(to, templateName string, data any) error {
	subject, html, err := renderTemplate(templateName, data)
	if err != nil {
		return err
	}
	msg := Message{To: to, Template: templateName, Subject: subject, HTML: html, Data: data}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	n := len(m.sent)
	m.mu.Unlock()

	obs.Pkg("email").Info("mock_email_sent", "to", to, "template", templateName)
	return m.writeOutbox(n, msg)
}

// LastEmail returns the most recent message, or the zero Message.
func (m *MockEmailService) LastEmail() Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Message{}
	}
	return m.sent[len(m.sent)-1]
}

// Sent returns a copy of every captured message in send order.
func (m *MockEmailService) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func (m *MockEmailService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *MockEmailService) Clear() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}

func (m *MockEmailService) writeOutbox(n int, msg Message) error {
	if m.outboxDir == "" {
		return nil
	}
	payload, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outbox message: %w", err)
	}
	name := fmt.Sprintf("%06d-%s.json", n, msg.Template)
	if err := os.WriteFile(filepath.Join(m.outboxDir, name), payload, 0o644); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}
