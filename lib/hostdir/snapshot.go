// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostdir

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bureau-foundation/hoststream/lib/netutil"
	"github.com/bureau-foundation/hoststream/lib/schema"
)

// FetchHosts reads a broker's host list from its HostsHandler endpoint.
// Unlike [Directory], no version filtering is applied.
func FetchHosts(ctx context.Context, client *http.Client, url string) ([]schema.HostInfo, error) {
	if client == nil {
		client = http.DefaultClient
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetching hosts: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching hosts: %s: %s", response.Status, netutil.ErrorBody(response.Body))
	}
	var payload HostsPayload
	if err := netutil.DecodeResponse(response.Body, &payload); err != nil {
		return nil, fmt.Errorf("fetching hosts: %w", err)
	}
	return payload.Hosts, nil
}
