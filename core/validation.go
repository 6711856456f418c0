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

import (
	"fmt"
)

// ValidateLemma validates a LemmaRecord according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - Origin must be one of the known values
//   - A known line number must be positive
//   - A present embedding must not be zero-length
//
// NOT validated:
//   - Clauses (may be empty until specs are filled)
//   - Embedding dimension (checked across the whole Index)
func ValidateLemma(record *LemmaRecord) error {
	if record == nil {
		return fmt.Errorf("%w: %w: record is nil", ErrValidation, ErrInvalidLemma)
	}

	if record.Name == "" {
		return fmt.Errorf("%w: %w: %w", ErrValidation, ErrInvalidLemma, ErrEmptyName)
	}

	if err := ValidateOrigin(record.Origin); err != nil {
		return fmt.Errorf("%w: %w: %q: %w", ErrValidation, ErrInvalidLemma, record.Name, err)
	}

	if line, ok := record.Location.Line(); ok && line <= 0 {
		return fmt.Errorf("%w: %w: %q: %w", ErrValidation, ErrInvalidLemma, record.Name, ErrInvalidLineNumber)
	}

	if record.Embedding.Present() && record.Embedding.Dim() == 0 {
		return fmt.Errorf("%w: %w: %q: embedding is present but empty", ErrValidation, ErrInvalidLemma, record.Name)
	}

	return nil
}

// ValidateOrigin validates that an Origin has a known value.
func ValidateOrigin(origin Origin) error {
	if origin < OriginProject || origin > OriginOther {
		return fmt.Errorf("%w: value %d", ErrInvalidOrigin, origin)
	}
	return nil
}
