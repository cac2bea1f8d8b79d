// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package notification

import (
	"context"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/serialize"
	"github.com/AMD-AGI/Primus-Deploy/pkg/websocket"
	"github.com/pkg/errors"
)

// ForwardedEventTypes is the whitelist of events pushed to websocket clients
// and forwarded to peer deployers.
var ForwardedEventTypes = []string{
	EventDeploymentQueued,
	EventDeploymentConfigurationLoaded,
	EventDeploymentEnd,
	EventDeploymentStepStart,
	EventDeploymentStepRelease,
	EventCommitsFetched,
}

func isForwarded(eventType string) bool {
	for _, t := range ForwardedEventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// WebSocketNotifier translates whitelisted events into websocket envelopes and
// broadcasts them. It also answers client subscribe/unsubscribe/ping messages.
type WebSocketNotifier struct {
	hub *websocket.Hub
}

// NewWebSocketNotifier wires the sink onto the hub.
func NewWebSocketNotifier(hub *websocket.Hub) *WebSocketNotifier {
	n := &WebSocketNotifier{hub: hub}
	hub.Listen("subscribe", n.handleSubscribe)
	hub.Listen("unsubscribe", n.handleUnsubscribe)
	hub.Listen("websocket.ping", n.handlePing)
	return n
}

// EventToWebSocket translates a whitelisted event into its wire envelope.
func EventToWebSocket(event *Event) (*websocket.Event, error) {
	if !isForwarded(event.Type) {
		return nil, errors.Errorf("can not format this event: %s", event.Type)
	}

	switch event.Type {
	case EventCommitsFetched:
		return websocket.NewEvent(EventCommitsFetched, map[string]interface{}{
			"environment_id": event.Payload["environment_id"],
		}), nil

	case EventDeploymentStepRelease:
		deployment := DeploymentFromEvent(event)
		if deployment == nil {
			return nil, errors.New("missing deployment in release event")
		}
		releaseInfo := map[string]interface{}{}
		if raw, ok := event.Payload["release_info"].(map[string]interface{}); ok {
			for k, v := range raw {
				releaseInfo[k] = v
			}
			if date, ok := releaseInfo["release_date"].(time.Time); ok {
				releaseInfo["release_date"] = date.UTC().Format(time.RFC3339Nano)
			}
		}
		payload := map[string]interface{}{
			"environment_id": event.Payload["environment_id"],
			"deployment":     serialize.Deployment(deployment),
			"release_info":   releaseInfo,
		}
		if server, ok := event.Payload["server"].(*model.Server); ok {
			payload["server"] = serialize.Server(server)
		}
		return websocket.NewEvent(EventDeploymentStepRelease, payload), nil

	case EventDeploymentQueued:
		return websocket.NewEvent("deployment.deployment_status", map[string]interface{}{
			"environment_id": event.Payload["environment_id"],
			"deployment": map[string]interface{}{
				"id":               event.Payload["deploy_id"],
				"user_id":          event.Payload["user_id"],
				"status":           model.DeploymentStatusQueued,
				"environment_id":   event.Payload["environment_id"],
				"environment_name": event.Payload["environment_name"],
				"repository_name":  event.Payload["repository_name"],
				"branch":           event.Payload["branch"],
				"commit":           event.Payload["commit"],
			},
		}), nil

	default:
		deployment := DeploymentFromEvent(event)
		if deployment == nil {
			return nil, errors.Errorf("missing deployment in event %s", event.Type)
		}
		return websocket.NewEvent("deployment.deployment_status", map[string]interface{}{
			"environment_id": event.Payload["environment_id"],
			"deployment":     serialize.Deployment(deployment),
		}), nil
	}
}

// Dispatch implements Notifier.
func (n *WebSocketNotifier) Dispatch(event *Event) {
	if !isForwarded(event.Type) {
		return
	}
	wsEvent, err := EventToWebSocket(event)
	if err != nil {
		log.Errorf("could not translate event %s to websocket: %v", event.Type, err)
		return
	}
	n.Publish(wsEvent)
}

// Publish broadcasts an already-translated envelope.
func (n *WebSocketNotifier) Publish(event *websocket.Event) {
	n.hub.Publish(event)
}

// handleSubscribe registers the client on the environment and replays the
// status of every in-flight deployment of that environment.
func (n *WebSocketNotifier) handleSubscribe(event *websocket.Event, client *websocket.Client) {
	envID, ok := environmentIDFromPayload(event.Payload)
	if !ok {
		log.Warnf("websocket subscribe without environment_id, ignoring")
		return
	}
	client.Subscribe(envID)

	deployments, err := database.GetFacade().GetDeployment().ListActiveByEnvironment(context.Background(), envID)
	if err != nil {
		log.Errorf("could not list active deployments for environment %d: %v", envID, err)
		return
	}
	for _, deployment := range deployments {
		client.Notify(websocket.NewEvent("deployment.deployment_status", map[string]interface{}{
			"environment_id": envID,
			"deployment":     serialize.Deployment(deployment),
		}))
	}
}

func (n *WebSocketNotifier) handleUnsubscribe(event *websocket.Event, client *websocket.Client) {
	envID, ok := environmentIDFromPayload(event.Payload)
	if !ok {
		return
	}
	client.Unsubscribe(envID)
}

func (n *WebSocketNotifier) handlePing(_ *websocket.Event, client *websocket.Client) {
	client.Notify(websocket.NewEvent("websocket.pong", map[string]interface{}{}))
}

func environmentIDFromPayload(payload map[string]interface{}) (int64, bool) {
	switch v := payload["environment_id"].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
