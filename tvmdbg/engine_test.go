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

package tvmdbg_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tvmdbg/tvmdbg"
	"github.com/tvmdbg/tvmdbg/fakevm"
)

func prepareSession(t *testing.T, trace []fakevm.MarkerEvent) (*tvmdbg.Session, *fakevm.Driver) {
	t.Helper()
	root, pool, debugInfo, driver, err := fakevm.BuildFixture(
		tvmdbg.GetMethod, trace, nil, tvmdbg.SetupResult{Code: 1}, nil,
	)
	require.NoError(t, err)

	sess, err := tvmdbg.Prepare(driver, tvmdbg.PrepareArgs{
		Kind:      tvmdbg.GetMethod,
		RootHash:  root,
		CellPool:  pool,
		DebugInfo: fakevm.NewReader(debugInfo),
	}, tvmdbg.DefaultConfig())
	require.NoError(t, err)
	return sess, driver
}

func drainOne(t *testing.T, sess *tvmdbg.Session) tvmdbg.Event {
	t.Helper()
	select {
	case e := <-sess.Events():
		return e
	default:
		t.Fatal("expected an event, got none")
		return tvmdbg.Event{}
	}
}

func TestContinueStopsAtBreakpoint(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 10, Function: "f", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 11, Function: "f"},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 12, Function: "f"},
	}
	sess, _ := prepareSession(t, trace)
	sess.SetBreakpoint("/src/a.fc", 12)

	require.NoError(t, sess.Continue())

	ev := drainOne(t, sess)
	require.Equal(t, tvmdbg.StopOnBreakpoint, ev.Kind)
	require.Equal(t, []tvmdbg.StackFrame{{Function: "f", Path: "/src/a.fc", Line: 12}}, ev.Frames)
}

func TestStepOverCrossesCall(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 10, Function: "f", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 20, Function: "g", FirstStatement: true},
		{Kind: fakevm.Return, Path: "/src/a.fc", Line: 20, Function: "g"},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 11, Function: "f"},
	}
	sess, _ := prepareSession(t, trace)

	// Drive to the first stop (marker 0) via stepIn.
	require.NoError(t, sess.StepIn())
	drainOne(t, sess)

	require.NoError(t, sess.StepOver())
	ev := drainOne(t, sess)

	require.Equal(t, tvmdbg.StopOnStep, ev.Kind)
	require.Len(t, ev.Frames, 1)
	require.Equal(t, "f", ev.Frames[0].Function)
	require.Equal(t, 11, ev.Frames[0].Line)
}

func TestStepIn(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 10, Function: "f", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 20, Function: "g", FirstStatement: true},
		{Kind: fakevm.Return, Path: "/src/a.fc", Line: 20, Function: "g"},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 11, Function: "f"},
	}
	sess, _ := prepareSession(t, trace)

	require.NoError(t, sess.StepIn())
	drainOne(t, sess)

	require.NoError(t, sess.StepIn())
	ev := drainOne(t, sess)

	require.Equal(t, tvmdbg.StopOnStep, ev.Kind)
	require.Len(t, ev.Frames, 2)
}

func TestStepOutPopsFrame(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 10, Function: "f", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 20, Function: "g", FirstStatement: true},
		{Kind: fakevm.Return, Path: "/src/a.fc", Line: 20, Function: "g"},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 11, Function: "f"},
	}
	sess, _ := prepareSession(t, trace)

	require.NoError(t, sess.StepIn())
	drainOne(t, sess)
	require.NoError(t, sess.StepIn())
	drainOne(t, sess)

	require.NoError(t, sess.StepOut())
	ev := drainOne(t, sess)

	require.Equal(t, tvmdbg.StopOnStep, ev.Kind)
	require.Len(t, ev.Frames, 1)
	require.Equal(t, "f", ev.Frames[0].Function)
}

func TestCatchUnwindsToSavedDepth(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 1, Function: "f", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 2, Function: "g", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 3, Function: "h", FirstStatement: true},
		{Kind: fakevm.Catch, Path: "/src/a.fc", Line: 3, Function: "h", SavedDepth: 1},
	}
	sess, _ := prepareSession(t, trace)

	// Step through all three statement markers first.
	require.NoError(t, sess.StepIn())
	drainOne(t, sess)
	require.NoError(t, sess.StepIn())
	drainOne(t, sess)
	require.NoError(t, sess.StepIn())
	drainOne(t, sess)

	require.NoError(t, sess.StepIn())
	ev := drainOne(t, sess)
	require.Equal(t, tvmdbg.End, ev.Kind)

	frames := sess.StackTrace()
	require.Len(t, frames, 1)
	require.Equal(t, "f", frames[0].Function)
}

func TestUnknownMarkerIsSkipped(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.NoMarker},
		{Kind: fakevm.NoMarker},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 5, Function: "f", FirstStatement: true},
	}
	sess, _ := prepareSession(t, trace)

	require.NoError(t, sess.StepIn())
	ev := drainOne(t, sess)

	require.Equal(t, tvmdbg.StopOnStep, ev.Kind)
	require.Len(t, ev.Frames, 1)
	require.Equal(t, 5, ev.Frames[0].Line)
}

func TestLocalsAvailableAtStatement(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 1, Function: "f", FirstStatement: true,
			Variables: []string{"x"}, Locals: []tvmdbg.TupleItem{tvmdbg.NewIntItem(7)}},
		{Kind: fakevm.Return, Path: "/src/a.fc", Line: 1, Function: "f"},
	}
	sess, _ := prepareSession(t, trace)

	require.NoError(t, sess.StepIn())
	drainOne(t, sess)

	locals, ok, err := sess.Locals()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tvmdbg.NewIntItem(7).String(), locals["x"].String())
}

func TestFinalizeDestroysEmulatorExactlyOnce(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 1, Function: "f", FirstStatement: true},
	}
	sess, driver := prepareSession(t, trace)

	require.NoError(t, sess.StepIn())
	drainOne(t, sess)

	require.NoError(t, sess.StepIn())
	ev := drainOne(t, sess)
	require.Equal(t, tvmdbg.End, ev.Kind)
	require.True(t, sess.IsFinalized())
	require.True(t, driver.Destroyed())

	err := sess.StepIn()
	require.ErrorIs(t, err, tvmdbg.ErrAlreadyFinalized)
}

func TestMidSessionStepErrorDestroysEmulatorAndFinalizesSession(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 1, Function: "f", FirstStatement: true},
	}
	sess, driver := prepareSession(t, trace)

	stepErr := errors.New("fakevm: injected step failure")
	driver.InjectStepError(stepErr)

	err := sess.StepIn()
	require.ErrorIs(t, err, stepErr)
	require.True(t, sess.IsFinalized())
	require.True(t, driver.Destroyed())

	// A Session that errored mid-session must not be steppable again into
	// an already-destroyed emulator.
	err = sess.StepIn()
	require.ErrorIs(t, err, tvmdbg.ErrAlreadyFinalized)
}

func TestMidSessionSetContParamErrorDestroysEmulator(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 1, Function: "f", FirstStatement: true},
	}
	sess, driver := prepareSession(t, trace)

	setErr := errors.New("fakevm: injected SetContParam failure")
	driver.InjectSetContParamError(setErr)

	err := sess.StepIn()
	require.ErrorIs(t, err, setErr)
	require.True(t, sess.IsFinalized())
	require.True(t, driver.Destroyed())
}

func TestMidSessionGetContParamErrorDestroysEmulator(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 1, Function: "f", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 2, Function: "g", FirstStatement: true},
		{Kind: fakevm.Catch, Path: "/src/a.fc", Line: 2, Function: "g", SavedDepth: 0},
	}
	sess, driver := prepareSession(t, trace)

	require.NoError(t, sess.StepIn())
	drainOne(t, sess)
	require.NoError(t, sess.StepIn())
	drainOne(t, sess)

	getErr := errors.New("fakevm: injected GetContParam failure")
	driver.InjectGetContParamError(getErr)

	err := sess.StepIn()
	require.ErrorIs(t, err, getErr)
	require.True(t, sess.IsFinalized())
	require.True(t, driver.Destroyed())
}

func TestFrameDepthExceededDestroysEmulator(t *testing.T) {
	trace := []fakevm.MarkerEvent{
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 1, Function: "f", FirstStatement: true},
		{Kind: fakevm.Statement, Path: "/src/a.fc", Line: 2, Function: "g", FirstStatement: true},
	}
	root, pool, debugInfo, driver, err := fakevm.BuildFixture(
		tvmdbg.GetMethod, trace, nil, tvmdbg.SetupResult{Code: 1}, nil,
	)
	require.NoError(t, err)

	cfg := tvmdbg.DefaultConfig()
	cfg.MaxFrameDepth = 1
	sess, err := tvmdbg.Prepare(driver, tvmdbg.PrepareArgs{
		Kind:      tvmdbg.GetMethod,
		RootHash:  root,
		CellPool:  pool,
		DebugInfo: fakevm.NewReader(debugInfo),
	}, cfg)
	require.NoError(t, err)

	require.NoError(t, sess.StepIn())
	drainOne(t, sess)

	err = sess.StepIn()
	require.ErrorIs(t, err, tvmdbg.ErrFrameDepthExceeded)
	require.True(t, sess.IsFinalized())
	require.True(t, driver.Destroyed())
}
