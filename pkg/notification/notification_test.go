// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package notification

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Dispatch(event *Event) {
	n.events = append(n.events, event.Type)
}

type panickingNotifier struct{}

func (n *panickingNotifier) Dispatch(*Event) {
	panic("sink exploded")
}

// A failing sink must not prevent later sinks from receiving the event.
func TestCollectionIsolatesSinkFailures(t *testing.T) {
	recorder := &recordingNotifier{}
	collection := NewCollection(&panickingNotifier{}, recorder)
	collection.Dispatch(DeployerStarted())
	assert.Equal(t, []string{EventDeployerStarted}, recorder.events)
}

func TestSanitizeForGraphite(t *testing.T) {
	assert.Equal(t, "org-app", SanitizeForGraphite("org/app"))
	assert.Equal(t, "prod_eu-1", SanitizeForGraphite("prod_eu-1"))
	assert.Equal(t, "a-b-c", SanitizeForGraphite("a.b.c"))
}

func completedDeployment() *model.Deployment {
	envID := int64(4)
	return &model.Deployment{
		ID:              12,
		RepositoryName:  "org/app",
		EnvironmentName: "prod",
		EnvironmentID:   &envID,
		Branch:          "master",
		Commit:          "abc123",
		Status:          model.DeploymentStatusComplete,
	}
}

func TestGraphiteNotifierSendsDatapoint(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
	}()

	addr := listener.Addr().(*net.TCPAddr)
	notifier := NewGraphiteNotifier(addr.IP.String(), addr.Port)
	notifier.now = func() time.Time { return time.Unix(1700000000, 0) }
	notifier.Dispatch(DeploymentEnd(completedDeployment(), nil))

	select {
	case line := <-received:
		assert.Equal(t, "prod.deploy.org-app 1 1700000000\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("no datapoint received")
	}
}

func TestGraphiteNotifierIgnoresFailedDeployments(t *testing.T) {
	notifier := NewGraphiteNotifier("example.com", 2003)
	dialed := false
	notifier.dial = func(string) (net.Conn, error) {
		dialed = true
		return nil, nil
	}
	deployment := completedDeployment()
	deployment.Status = model.DeploymentStatusFailed
	notifier.Dispatch(DeploymentEnd(deployment, nil))
	assert.False(t, dialed)
}

func TestEventToWebSocketQueued(t *testing.T) {
	event := DeploymentQueued(7, 4, "org/app", "prod", "master", "abc123", 2)
	wsEvent, err := EventToWebSocket(event)
	require.NoError(t, err)
	assert.Equal(t, "deployment.deployment_status", wsEvent.Type)
	deployment := wsEvent.Payload["deployment"].(map[string]interface{})
	assert.Equal(t, model.DeploymentStatusQueued, deployment["status"])
	assert.Equal(t, int64(7), deployment["id"])
}

func TestEventToWebSocketCommitsFetched(t *testing.T) {
	event := CommitsFetched(4, "/srv/repos/app", "git.example.com", "org/app", "master", 0)
	wsEvent, err := EventToWebSocket(event)
	require.NoError(t, err)
	assert.Equal(t, EventCommitsFetched, wsEvent.Type)
	assert.Equal(t, int64(4), wsEvent.Payload["environment_id"])
	assert.NotContains(t, wsEvent.Payload, "local_repo_path")
}

func TestEventToWebSocketRejectsUnlistedEvents(t *testing.T) {
	_, err := EventToWebSocket(DeployerStarted())
	assert.Error(t, err)
}

func TestMailNotifierMessageRendering(t *testing.T) {
	deployment := completedDeployment()
	start := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)
	deployment.DateStartDeploy = &start
	deployment.DateEndDeploy = &end
	deployment.Environment = &model.Environment{
		Name:         "prod",
		DeployBranch: "master",
		Repository:   &model.Repository{Name: "org/app", NotifyOwnersMails: "owner@example.com"},
	}
	deployment.LogEntries = []*model.LogEntry{
		model.NewLogEntry("Step: Clone repository org/app"),
	}

	notifier := NewMailNotifier(nil, "deployer@example.com", nil)
	message, subject := notifier.renderMessage(deployment)
	assert.Equal(t, "org/app/prod (branch master): deployment was successful", subject)
	assert.Contains(t, message, "Status: success")
	assert.Contains(t, message, "Commit: abc123")
	assert.Contains(t, message, "Step: Clone repository org/app")

	deployment.Status = model.DeploymentStatusFailed
	message, subject = notifier.renderMessage(deployment)
	assert.Equal(t, "org/app/prod (branch master): deployment failed", subject)
	assert.Contains(t, message, "Status: failure")
}
