// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package notification

import (
	"net/http"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// RemoteDeployerNotifier forwards whitelisted events to the other deployer
// instances of the cluster so their websocket clients stay in sync. It
// authenticates with the shared deployer account and caches the session
// token, re-authenticating once on a 403.
type RemoteDeployerNotifier struct {
	// urls must not include the current deployer URL.
	urls         []string
	username     string
	token        string
	sessionToken string
	httpClient   *resty.Client
}

// NewRemoteDeployerNotifier creates the peer-forwarding sink.
func NewRemoteDeployerNotifier(urls []string, username, token string) *RemoteDeployerNotifier {
	return &RemoteDeployerNotifier{
		urls:       urls,
		username:   username,
		token:      token,
		httpClient: resty.New().SetTimeout(10 * time.Second),
	}
}

func (n *RemoteDeployerNotifier) authenticate(url string) error {
	var result struct {
		Token string `json:"token"`
	}
	resp, err := n.httpClient.R().
		SetBody(map[string]string{"username": n.username, "auth_token": n.token}).
		SetResult(&result).
		Post(joinURL(url, "/api/auth/token"))
	if err != nil {
		return errors.Wrap(err, "peer authentication failed")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("peer authentication failed with status %d", resp.StatusCode())
	}
	if result.Token == "" {
		return errors.New("peer authentication returned no token")
	}
	n.sessionToken = result.Token
	return nil
}

// Dispatch implements Notifier.
func (n *RemoteDeployerNotifier) Dispatch(event *Event) {
	if !isForwarded(event.Type) {
		return
	}
	wsEvent, err := EventToWebSocket(event)
	if err != nil {
		log.Errorf("could not translate event %s for peers: %v", event.Type, err)
		return
	}
	body := map[string]interface{}{
		"event": map[string]interface{}{
			"type":    wsEvent.Type,
			"payload": wsEvent.Payload,
		},
	}
	for _, url := range n.urls {
		if err := n.send(url, body); err != nil {
			log.Errorf("could not forward event %s to %s: %v", event.Type, url, err)
		}
	}
}

func (n *RemoteDeployerNotifier) send(url string, body map[string]interface{}) error {
	if n.sessionToken == "" {
		if err := n.authenticate(url); err != nil {
			return err
		}
	}
	resp, err := n.post(url, body)
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusForbidden {
		// Session token expired, re-authenticate and retry once.
		if err := n.authenticate(url); err != nil {
			return err
		}
		resp, err = n.post(url, body)
		if err != nil {
			return err
		}
	}
	if resp.StatusCode() >= 400 {
		return errors.Errorf("peer returned status %d", resp.StatusCode())
	}
	return nil
}

func (n *RemoteDeployerNotifier) post(url string, body map[string]interface{}) (*resty.Response, error) {
	return n.httpClient.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Session-Token", n.sessionToken).
		SetBody(body).
		Post(joinURL(url, "/api/notification/websocketevent"))
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
