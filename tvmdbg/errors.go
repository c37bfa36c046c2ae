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

import "github.com/pkg/errors"

var (
	// ErrSetupFailed is returned by Prepare when a transaction-kind
	// session's emulator setup call reports a result code other than 1.
	ErrSetupFailed = errors.New("emulator setup did not return success")

	// ErrFrameDepthExceeded is delivered as a fatal finalize reason when
	// the frame stack would grow past Config.MaxFrameDepth.
	ErrFrameDepthExceeded = errors.New("frame stack depth exceeded configured limit")

	// ErrAlreadyFinalized is returned by any stepping verb invoked after
	// the session's emulator has been torn down.
	ErrAlreadyFinalized = errors.New("session already finalized")
)
