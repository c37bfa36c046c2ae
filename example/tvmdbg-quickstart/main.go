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

package main

import (
	"fmt"

	"github.com/tvmdbg/tvmdbg"
	"github.com/tvmdbg/tvmdbg/fakevm"
)

func main() {
	// 1. Describe a tiny trace: one call into checkSeqno, one breakpoint
	// inside main after it returns.
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/contracts/wallet.fc", Line: 10, Function: "main", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/contracts/wallet.fc", Line: 20, Function: "checkSeqno", FirstStatement: true},
		{Kind: fakevm.Return, Path: "/contracts/wallet.fc", Line: 20, Function: "checkSeqno"},
		{Kind: fakevm.Statement, Path: "/contracts/wallet.fc", Line: 11, Function: "main"},
	}

	// 2. Build a fixture and the scripted driver that replays it.
	root, pool, debugInfo, driver, err := fakevm.BuildFixture(
		tvmdbg.GetMethod, trace, nil, tvmdbg.SetupResult{Code: 1}, nil,
	)
	if err != nil {
		fmt.Println("Error building fixture:", err)
		return
	}

	// 3. Prepare a session against it.
	session, err := tvmdbg.Prepare(driver, tvmdbg.PrepareArgs{
		Kind:      tvmdbg.GetMethod,
		RootHash:  root,
		CellPool:  pool,
		DebugInfo: fakevm.NewReader(debugInfo),
	}, tvmdbg.DefaultConfig())
	if err != nil {
		fmt.Println("Error preparing session:", err)
		return
	}

	// 4. Set a breakpoint and continue to it.
	session.SetBreakpoint("/contracts/wallet.fc", 11)
	if err := session.Continue(); err != nil {
		fmt.Println("Error continuing:", err)
		return
	}

	ev := <-session.Events()
	for _, f := range ev.Frames {
		fmt.Printf("%s at %s:%d\n", f.Function, f.Path, f.Line) // Output: main at /contracts/wallet.fc:11
	}
}
