// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package notification

import (
	"fmt"
	"net"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// GraphiteNotifier pushes one datapoint to carbon for every successful
// deployment, so deploys can be overlaid on service dashboards.
type GraphiteNotifier struct {
	carbonHost string
	carbonPort int
	now        func() time.Time
	dial       func(address string) (net.Conn, error)
}

// NewGraphiteNotifier creates the carbon sink. An empty host disables it.
func NewGraphiteNotifier(carbonHost string, carbonPort int) *GraphiteNotifier {
	return &GraphiteNotifier{
		carbonHost: carbonHost,
		carbonPort: carbonPort,
		now:        time.Now,
		dial: func(address string) (net.Conn, error) {
			return net.DialTimeout("tcp", address, 5*time.Second)
		},
	}
}

// Dispatch implements Notifier.
func (n *GraphiteNotifier) Dispatch(event *Event) {
	if n.carbonHost == "" {
		return
	}
	if event.Type != EventDeploymentEnd {
		return
	}
	deployment := DeploymentFromEvent(event)
	if deployment == nil || deployment.Status != model.DeploymentStatusComplete {
		return
	}
	metricName := fmt.Sprintf("%s.deploy.%s",
		SanitizeForGraphite(deployment.EnvironmentName),
		SanitizeForGraphite(deployment.RepositoryName),
	)
	message := fmt.Sprintf("%s %d %d\n", metricName, 1, n.now().Unix())
	conn, err := n.dial(fmt.Sprintf("%s:%d", n.carbonHost, n.carbonPort))
	if err != nil {
		log.Errorf("could not reach carbon at %s:%d: %v", n.carbonHost, n.carbonPort, err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(message)); err != nil {
		log.Errorf("could not send metric to carbon: %v", err)
	}
}

// SanitizeForGraphite replaces every character outside [A-Za-z0-9_-] with '-'.
func SanitizeForGraphite(name string) string {
	out := make([]rune, 0, len(name))
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
