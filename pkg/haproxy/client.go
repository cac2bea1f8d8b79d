// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package haproxy drives the HAProxy admin socket over its HTTP stats page:
// server status is read from the CSV stats export, enable/disable actions are
// posted as form data.
package haproxy

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// Client talks to one HAProxy admin endpoint.
type Client struct {
	url        string
	httpClient *resty.Client
}

// NewClient creates a client for the stats URL of one HAProxy host.
func NewClient(url, user, password string) *Client {
	client := resty.New().
		SetTimeout(defaultTimeout).
		SetRedirectPolicy(resty.NoRedirectPolicy())
	if user != "" {
		client.SetBasicAuth(user, password)
	}
	return &Client{url: url, httpClient: client}
}

// Enable puts a backend server back in rotation.
func (c *Client) Enable(backend, server string) error {
	return c.post(backend, server, "enable")
}

// Disable drains a backend server.
func (c *Client) Disable(backend, server string) error {
	return c.post(backend, server, "disable")
}

// post sends an admin action. HAProxy answers a 303 whose Location header
// contains "DONE" on success.
func (c *Client) post(backend, server, action string) error {
	resp, err := c.httpClient.R().
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(fmt.Sprintf("s=%s&action=%s&b=%s", server, action, backend)).
		Post(c.url)
	if err != nil && resp == nil {
		return errors.Wrapf(err, "haproxy %s %s/%s", action, backend, server)
	}
	if resp.StatusCode() != http.StatusSeeOther {
		return errors.Errorf("haproxy %s %s/%s: unexpected status %d", action, backend, server, resp.StatusCode())
	}
	location := resp.Header().Get("Location")
	if !strings.Contains(location, "DONE") {
		return errors.Errorf("haproxy %s %s/%s: action not applied (%s)", action, backend, server, location)
	}
	return nil
}

// Stats fetches and parses the CSV stats export, one map per proxy row.
func (c *Client) Stats() ([]map[string]string, error) {
	resp, err := c.httpClient.R().Get(c.url + ";csv")
	if err != nil {
		return nil, errors.Wrap(err, "haproxy stats")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Errorf("haproxy stats: unexpected status %d", resp.StatusCode())
	}
	lines := strings.Split(strings.TrimRight(resp.String(), "\n"), "\n")
	if len(lines) == 0 {
		return nil, errors.New("haproxy stats: empty response")
	}
	header := strings.Split(strings.TrimSuffix(strings.TrimPrefix(lines[0], "# "), ","), ",")
	var rows []map[string]string
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Status returns the stats row of one backend server, or nil if absent.
func (c *Client) Status(backend, server string) (map[string]string, error) {
	rows, err := c.Stats()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row["pxname"] == backend && row["svname"] == server {
			return row, nil
		}
	}
	return nil, nil
}
