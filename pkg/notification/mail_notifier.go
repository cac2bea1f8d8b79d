// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/mail"
)

// MailNotifier mails a deployment summary on deployment.end.
type MailNotifier struct {
	mailer *mail.Mailer
	sender string
	// alwaysNotify receives every deployment mail, on top of the repository owners.
	alwaysNotify []string
}

// NewMailNotifier creates the mail sink.
func NewMailNotifier(mailer *mail.Mailer, sender string, alwaysNotify []string) *MailNotifier {
	return &MailNotifier{mailer: mailer, sender: sender, alwaysNotify: alwaysNotify}
}

// Dispatch implements Notifier.
func (n *MailNotifier) Dispatch(event *Event) {
	if event.Type != EventDeploymentEnd {
		return
	}
	deployment := DeploymentFromEvent(event)
	if deployment == nil {
		return
	}
	var screenshots []string
	if raw, ok := event.Payload["screenshot_files"].([]string); ok {
		screenshots = raw
	}
	n.sendDeploymentMail(deployment, screenshots)
}

func (n *MailNotifier) sendDeploymentMail(deployment *model.Deployment, screenshots []string) {
	receivers := map[string]struct{}{}
	if deployment.Environment != nil && deployment.Environment.Repository != nil {
		for _, address := range deployment.Environment.Repository.NotifyMailsList() {
			receivers[address] = struct{}{}
		}
	}
	for _, address := range n.alwaysNotify {
		receivers[address] = struct{}{}
	}
	if len(receivers) == 0 {
		return
	}
	to := make([]string, 0, len(receivers))
	for address := range receivers {
		to = append(to, address)
	}
	message, subject := n.renderMessage(deployment)
	n.mailer.Send(n.sender, to, subject, message, screenshots)
}

func (n *MailNotifier) renderMessage(deployment *model.Deployment) (string, string) {
	wasSuccessful := deployment.Status == model.DeploymentStatusComplete
	status := "failed"
	shortStatus := "failure"
	if wasSuccessful {
		status = "was successful"
		shortStatus = "success"
	}

	var clustersDescription []string
	for _, cluster := range deployment.TargetClusters() {
		var serverNames []string
		for _, asso := range cluster.Servers {
			if asso.Server != nil {
				serverNames = append(serverNames, asso.Server.Name)
			}
		}
		clustersDescription = append(clustersDescription, fmt.Sprintf("%s: %s", cluster.Name, strings.Join(serverNames, ", ")))
	}

	var logLines []string
	for _, entry := range deployment.LogEntries {
		logLines = append(logLines, entry.Format())
	}

	message := fmt.Sprintf(`
== Deployment summary (id: %d) ==

= General info =
Status: %s

Repository: %s
Branch: %s
Commit: %s

Started: %s
Completed: %s

= Clusters =

%s

= Log =

%s
`,
		deployment.ID,
		shortStatus,
		deployment.RepositoryName,
		deployment.Branch,
		deployment.Commit,
		formatDate(deployment.DateStartDeploy),
		formatDate(deployment.DateEndDeploy),
		strings.Join(clustersDescription, "\n"),
		strings.Join(logLines, "\n"),
	)

	deployBranch := deployment.Branch
	if deployment.Environment != nil {
		deployBranch = deployment.Environment.DeployBranch
	}
	subject := fmt.Sprintf("%s/%s (branch %s): deployment %s",
		deployment.RepositoryName, deployment.EnvironmentName, deployBranch, status)
	return message, subject
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
