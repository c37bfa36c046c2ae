// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package repl

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// resolveHTTPTimeout bounds the whole round trip of a fixture fetch,
// connect through body read, so a PREPARE/LOAD against an unresponsive
// host can't hang the REPL indefinitely.
const resolveHTTPTimeout = 10 * time.Second

var httpClient = &http.Client{Timeout: resolveHTTPTimeout}

// ResolveSource opens a trace script or cell-graph fixture given as a
// local path, an http(s) URL, or "-" for stdin, so PREPARE/LOAD can
// load a fixture from wherever the host keeps it, including a script
// piping one in.
func ResolveSource(source string) (io.ReadCloser, error) {
	if source == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "http", "https":
		return resolveHTTP(u)
	case "file", "":
		return os.Open(u.Path)
	default:
		return nil, fmt.Errorf("unsupported url scheme: %s", u.Scheme)
	}
}

func resolveHTTP(u *url.URL) (io.ReadCloser, error) {
	response, err := httpClient.Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		response.Body.Close()
		return nil, fmt.Errorf("unexpected http status: %s", response.Status)
	}

	return response.Body, nil
}
