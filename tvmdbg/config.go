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

package tvmdbg

// Config controls the resource limits and optional behavior of a Session.
type Config struct {
	// MaxFrameDepth is the hard limit on the frame stack depth. A Statement
	// marker that would push the stack past this depth finalizes the
	// session with ErrFrameDepthExceeded instead of growing the stack
	// without bound. Default: 10000.
	MaxFrameDepth int

	// EventQueueCapacity bounds the channel stop/output/end events are
	// delivered on. Default: 64.
	EventQueueCapacity int

	// ForwardEmulatorLog controls whether debugLogFunc output is turned
	// into output events at all. Default: true.
	ForwardEmulatorLog bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxFrameDepth:      10000,
		EventQueueCapacity: 64,
		ForwardEmulatorLog: true,
	}
}
