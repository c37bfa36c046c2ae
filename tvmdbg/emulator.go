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

// SessionKind selects which set of emulator calls a Session dispatches.
type SessionKind int

const (
	// GetMethod is a read-only contract invocation.
	GetMethod SessionKind = iota
	// Transaction is a state-mutating message processing run.
	Transaction
)

func (k SessionKind) String() string {
	switch k {
	case GetMethod:
		return "get-method"
	case Transaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// SetupResult is what a Transaction-kind setup call reports; GetMethod
// setup has no result code to check, since only transaction preparation
// can fail, signaled by a result code other than 1.
type SetupResult struct {
	Code int
}

// Ok reports whether the setup call succeeded.
func (r SetupResult) Ok() bool {
	return r.Code == 1
}

// Emulator is the contract this engine consumes from the external VM
// emulator. The emulator itself — a native library — is out of scope;
// this interface exists so the stepping engine can be driven by either a
// real binding or, in this repository, the scripted implementation in
// tvmdbg/fakevm.
//
// A conforming implementation is constructed for one particular
// SessionKind, but the interface itself is uniform across kinds: every
// other operation is available regardless of which kind set it up.
type Emulator interface {
	// Setup prepares the emulator to run and returns its setup result.
	// For GetMethod sessions the result is always Ok(); for Transaction
	// sessions a non-1 code means preparation failed.
	Setup(args any) (SetupResult, error)

	// Step advances the VM by exactly one instruction and reports
	// whether the VM has terminated.
	Step() (finished bool, err error)

	// CodePos returns the VM's current instruction pointer.
	CodePos() (CodePos, error)

	// Stack returns the current operand stack, bottom first.
	Stack() ([]TupleItem, error)

	// C7 returns the VM's C7 context register. A C7 that is not shaped
	// like a tuple is reported by returning ok == false, not an error:
	// globals inspection then reports "unavailable."
	C7() (TupleValue, bool, error)

	// GetContParam reads the small integer slot this engine uses to
	// checkpoint frame depth across a catch-protected region.
	GetContParam() (int, error)

	// SetContParam writes that slot.
	SetContParam(value int) error

	// Result returns the kind-specific final payload, valid only after
	// Step has reported finished == true.
	Result() (any, error)

	// Destroy releases the emulator handle. It must be safe to call
	// exactly once, and the engine guarantees it will be called exactly
	// once per session, on every exit path.
	Destroy()

	// SetDebugLogFunc wires a sink the emulator calls with each log line
	// it produces; the engine forwards these as output events.
	SetDebugLogFunc(fn func(string))
}
