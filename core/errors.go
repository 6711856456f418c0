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


package core

import "errors"

// Domain validation errors
var (
	// ErrValidation is the umbrella error for every data or configuration
	// problem that must fail a call instead of producing a result.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidLemma indicates a LemmaRecord failed validation.
	ErrInvalidLemma = errors.New("invalid lemma record")

	// ErrEmptyName indicates the Name field is empty.
	ErrEmptyName = errors.New("lemma name cannot be empty")

	// ErrInvalidOrigin indicates an unknown Origin value.
	ErrInvalidOrigin = errors.New("invalid origin")

	// ErrDuplicateName indicates two records share a name inside one index
	// and the collision could not be disambiguated.
	ErrDuplicateName = errors.New("duplicate lemma name")

	// ErrDimensionMismatch indicates embedding vectors of different lengths.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidLineNumber indicates a non-positive line number.
	ErrInvalidLineNumber = errors.New("line number must be positive")

	// ErrNotFound indicates a lemma name is not present in an index.
	ErrNotFound = errors.New("lemma not found")
)
