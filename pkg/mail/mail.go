// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package mail queues outgoing mails and flushes them from a dedicated worker;
// each mail is delivered over its own SMTP connection.
package mail

import (
	"encoding/base64"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// Message is one outgoing mail. Attachments are paths of PNG files.
type Message struct {
	Sender      string
	Receivers   []string
	Subject     string
	Body        string
	Attachments []string
}

// Mailer enqueues messages for the worker.
type Mailer struct {
	queue chan Message
}

// NewMailer creates the shared mail queue.
func NewMailer() *Mailer {
	return &Mailer{queue: make(chan Message, 128)}
}

// Send enqueues a mail. The queue is bounded; when the worker cannot keep up
// the mail is dropped with an error log rather than blocking a deployment.
func (m *Mailer) Send(sender string, receivers []string, subject, body string, attachments []string) {
	msg := Message{
		Sender:      sender,
		Receivers:   receivers,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	}
	select {
	case m.queue <- msg:
	default:
		log.Errorf("mail queue full, dropping mail '%s'", subject)
	}
}

// sendMailFunc is replaced in tests.
type sendMailFunc func(addr string, from string, to []string, msg []byte) error

func smtpSend(addr, from string, to []string, msg []byte) error {
	return smtp.SendMail(addr, nil, from, to, msg)
}

// Worker flushes the queue through the configured MTA.
type Worker struct {
	mailer   *Mailer
	mta      string
	stop     chan struct{}
	sendMail sendMailFunc
}

// NewWorker creates the mail worker.
func NewWorker(mailer *Mailer, mta string) *Worker {
	return &Worker{
		mailer:   mailer,
		mta:      mta,
		stop:     make(chan struct{}),
		sendMail: smtpSend,
	}
}

// Name identifies the worker for the supervisor.
func (w *Worker) Name() string {
	return "mail-worker"
}

// Start consumes the queue until Stop is called.
func (w *Worker) Start() {
	for {
		select {
		case <-w.stop:
			return
		case msg := <-w.mailer.queue:
			if err := w.deliver(msg); err != nil {
				// Reconnect semantics are handled by SendMail opening a fresh
				// connection; retry once before giving up on this message.
				log.Warnf("mail delivery failed, retrying once: %v", err)
				time.Sleep(time.Second)
				if err := w.deliver(msg); err != nil {
					log.Errorf("could not send mail '%s': %v", msg.Subject, err)
				}
			}
		}
	}
}

// Stop makes Start return.
func (w *Worker) Stop() {
	close(w.stop)
}

func (w *Worker) deliver(msg Message) error {
	if w.mta == "" {
		log.Debugf("no MTA configured, dropping mail '%s'", msg.Subject)
		return nil
	}
	if len(msg.Receivers) == 0 {
		return nil
	}
	addr := w.mta
	if !strings.Contains(addr, ":") {
		addr += ":25"
	}
	body, err := renderMessage(msg)
	if err != nil {
		return err
	}
	if err := w.sendMail(addr, msg.Sender, msg.Receivers, body); err != nil {
		return err
	}
	log.Debugf("Sent mail '%s' to %s", msg.Subject, strings.Join(msg.Receivers, ", "))
	return nil
}

// renderMessage builds the MIME message, multipart when attachments exist.
func renderMessage(msg Message) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Receivers, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String()), nil
	}

	boundary := "=_deployer_mail_boundary"
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Body)
	for _, attachment := range msg.Attachments {
		data, err := os.ReadFile(attachment)
		if err != nil {
			log.Warnf("could not read mail attachment %s: %v", attachment, err)
			continue
		}
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: image/png\r\n")
		fmt.Fprintf(&b, "Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", filepath.Base(attachment))
		b.WriteString(base64.StdEncoding.EncodeToString(data))
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String()), nil
}
