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

// StackFrame is a source-level activation record. Frames are small,
// owned-by-value records: they copy the name/path/line they need rather
// than holding a reference back into the SourceMap, so there is no
// back-reference graph to manage.
type StackFrame struct {
	Function string
	Path     string
	Line     int
}

// frameStack is the session's call stack, index 0 being the outermost
// frame. It is mutated only by the stepping loop.
type frameStack struct {
	frames []StackFrame
}

func (s *frameStack) depth() int {
	return len(s.frames)
}

func (s *frameStack) push(f StackFrame) {
	s.frames = append(s.frames, f)
}

// pop removes the top frame. A Return marker pops exactly one frame, and
// the stepping loop is responsible for never calling this on an empty
// stack; as a defensive measure it is simply a no-op in that case.
func (s *frameStack) pop() {
	if len(s.frames) == 0 {
		return
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// top returns a pointer to the outermost-to-innermost top frame, or nil
// if the stack is empty.
func (s *frameStack) top() *StackFrame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}

// truncate shrinks the stack to the given depth, as Catch handling
// requires. A target greater than or equal to the current depth is a
// no-op.
func (s *frameStack) truncate(depth int) {
	if depth < 0 {
		depth = 0
	}
	if depth >= len(s.frames) {
		return
	}
	s.frames = s.frames[:depth]
}

// snapshot returns a copy of the current frames, outermost first, safe
// for a caller to retain.
func (s *frameStack) snapshot() []StackFrame {
	out := make([]StackFrame, len(s.frames))
	copy(out, s.frames)
	return out
}
