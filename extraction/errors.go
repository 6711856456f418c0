// Copyright 2025 Poiesic Systems
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


package extraction

import "errors"

var (
	// ErrOutsideRepo is returned when a source path resolves outside the repository root.
	ErrOutsideRepo = errors.New("path outside repository root")

	// ErrUnbalanced is returned when a function header has unmatched delimiters.
	ErrUnbalanced = errors.New("unbalanced delimiters in function header")

	// ErrUnknownEngine is returned for an extraction engine name that is not recognized.
	ErrUnknownEngine = errors.New("unknown extraction engine")
)
