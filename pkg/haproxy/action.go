// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package haproxy

import (
	"fmt"
	"strings"

	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// Action is the desired rotation state for a set of servers.
type Action int

const (
	ActionEnable Action = iota + 1
	ActionDisable
)

func (a Action) String() string {
	switch a {
	case ActionEnable:
		return "ENABLE"
	case ActionDisable:
		return "DISABLE"
	}
	return "UNKNOWN"
}

// InvalidKeyFormatError reports cluster keys that do not split into exactly
// one backend and one server.
type InvalidKeyFormatError struct {
	Keys []string
}

func (e *InvalidKeyFormatError) Error() string {
	if len(e.Keys) == 0 {
		return "some HAProxy keys are not defined"
	}
	return fmt.Sprintf("the following HAProxy keys are invalid: %v", e.Keys)
}

// UnexpectedServerStatusError reports a server missing from the stats export
// or in a state the caller did not expect.
type UnexpectedServerStatusError struct {
	Reason string
}

func (e *UnexpectedServerStatusError) Error() string {
	return e.Reason
}

// ClientFactory builds a client per HAProxy host; replaced in tests.
type ClientFactory func(host string) *Client

// NewClientFactory returns the production factory with the given credentials.
func NewClientFactory(user, password string) ClientFactory {
	return func(host string) *Client {
		return NewClient(host, user, password)
	}
}

// ClusterAction first verifies that every key's current status contains
// expectedStatus, then applies the desired action to each key: UP servers are
// disabled when draining, MAINT servers are enabled when filling, anything
// else is left untouched.
func ClusterAction(client *Client, keys []string, expectedStatus string, action Action) error {
	var invalid []string
	for _, key := range keys {
		if key == "" {
			return &InvalidKeyFormatError{}
		}
		if strings.Count(key, ",") != 1 {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		return &InvalidKeyFormatError{Keys: invalid}
	}

	type backendServer struct {
		backend string
		server  string
	}
	normalized := make([]backendServer, 0, len(keys))
	for _, key := range keys {
		parts := strings.SplitN(key, ",", 2)
		normalized = append(normalized, backendServer{backend: parts[0], server: parts[1]})
	}

	// Check status first: all servers must match before anything is mutated.
	for _, bs := range normalized {
		row, err := client.Status(bs.backend, bs.server)
		if err != nil {
			return err
		}
		if row == nil {
			return &UnexpectedServerStatusError{
				Reason: fmt.Sprintf("server [%s] of backend [%s] not found in haproxy", bs.server, bs.backend),
			}
		}
		status := row["status"]
		log.Infof("HAProxy current status of [%s/%s]: [%s] expected:[%s]", bs.backend, bs.server, status, expectedStatus)
		if !strings.Contains(status, expectedStatus) {
			return &UnexpectedServerStatusError{
				Reason: fmt.Sprintf("server [%s] of backend [%s] not %s in haproxy (status: %s)", bs.server, bs.backend, expectedStatus, status),
			}
		}
	}

	for _, bs := range normalized {
		row, err := client.Status(bs.backend, bs.server)
		if err != nil {
			return err
		}
		status := ""
		if row != nil {
			status = row["status"]
		}
		switch {
		case action == ActionDisable && strings.Contains(status, "UP"):
			log.Infof("HAProxy change status of [%s/%s] from [%s] to [%s]", bs.backend, bs.server, status, action)
			err = client.Disable(bs.backend, bs.server)
		case action == ActionEnable && strings.Contains(status, "MAINT"):
			log.Infof("HAProxy change status of [%s/%s] from [%s] to [%s]", bs.backend, bs.server, status, action)
			err = client.Enable(bs.backend, bs.server)
		default:
			log.Infof("HAProxy status already OK for [%s/%s] [%s] == [%s]", bs.backend, bs.server, status, action)
		}
		if err != nil {
			return &UnexpectedServerStatusError{
				Reason: fmt.Sprintf("server [%s] of backend [%s] status could not be changed: %v", bs.server, bs.backend, err),
			}
		}
	}
	return nil
}
