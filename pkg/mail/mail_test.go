// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package mail

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMessagePlainText(t *testing.T) {
	body, err := renderMessage(Message{
		Sender:    "deployer@example.com",
		Receivers: []string{"ops@example.com", "release@example.com"},
		Subject:   "org/app/prod: deployment was successful",
		Body:      "all good",
	})
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "From: deployer@example.com")
	assert.Contains(t, text, "To: ops@example.com, release@example.com")
	assert.Contains(t, text, "Subject: org/app/prod: deployment was successful")
	assert.Contains(t, text, "all good")
	assert.NotContains(t, text, "multipart/mixed")
}

func TestRenderMessageWithAttachment(t *testing.T) {
	screenshot := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(screenshot, []byte("png-bytes"), 0o644))

	body, err := renderMessage(Message{
		Sender:      "deployer@example.com",
		Receivers:   []string{"ops@example.com"},
		Subject:     "with screenshot",
		Body:        "see attached",
		Attachments: []string{screenshot},
	})
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "multipart/mixed")
	assert.Contains(t, text, `filename="shot.png"`)
	assert.Contains(t, text, "image/png")
}

func TestWorkerDeliversQueuedMail(t *testing.T) {
	mailer := NewMailer()
	worker := NewWorker(mailer, "mta.example.com")

	delivered := make(chan []string, 1)
	worker.sendMail = func(addr, from string, to []string, _ []byte) error {
		assert.Equal(t, "mta.example.com:25", addr)
		assert.Equal(t, "deployer@example.com", from)
		delivered <- to
		return nil
	}

	go worker.Start()
	defer worker.Stop()

	mailer.Send("deployer@example.com", []string{"ops@example.com"}, "subject", "body", nil)
	select {
	case to := <-delivered:
		assert.Equal(t, []string{"ops@example.com"}, to)
	case <-time.After(2 * time.Second):
		t.Fatal("mail was not delivered")
	}
}

func TestWorkerRetriesOnce(t *testing.T) {
	mailer := NewMailer()
	worker := NewWorker(mailer, "mta.example.com")

	attempts := make(chan int, 2)
	count := 0
	worker.sendMail = func(string, string, []string, []byte) error {
		count++
		attempts <- count
		if count == 1 {
			return assertError{}
		}
		return nil
	}

	go worker.Start()
	defer worker.Stop()

	mailer.Send("a@example.com", []string{"b@example.com"}, "s", "b", nil)
	deadline := time.After(3 * time.Second)
	for seen := 0; seen < 2; {
		select {
		case <-attempts:
			seen++
		case <-deadline:
			t.Fatalf("expected a retry, saw %d attempts", seen)
		}
	}
}

type assertError struct{}

func (assertError) Error() string { return "smtp down" }

func TestSendDropsWhenQueueIsFull(t *testing.T) {
	mailer := NewMailer()
	for i := 0; i < 200; i++ {
		mailer.Send("a@example.com", []string{"b@example.com"}, "s", strings.Repeat("x", 10), nil)
	}
	// No worker is draining: the call above must not have blocked.
	assert.True(t, len(mailer.queue) <= 128)
}
