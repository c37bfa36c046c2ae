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

// Package tvmdbg implements the debuggee side of a source-level debugger
// for contracts running on a stack-based VM (TVM). It drives an external,
// single-step VM emulator (see Emulator) through a session's lifetime,
// correlating each program counter with a source location via markers
// embedded in the bytecode, and exposes the four stepping verbs a host
// debug adapter needs: Continue, StepIn, StepOver and StepOut.
//
// The VM emulator itself, the wire protocol used to talk to an editor and
// the bytecode compiler are all out of scope: this package only consumes
// the Emulator interface and a pre-built SourceMap.
package tvmdbg
