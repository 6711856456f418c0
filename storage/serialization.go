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


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/lemmafind/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(id), nil
}

// MarshalLemma serializes a LemmaRecord together with its insertion sequence.
func MarshalLemma(seq uint64, record *core.LemmaRecord) []byte {
	buf := make([]byte, varint.Uint64.Size(seq)+core.LemmaRecordMUS.Size(*record))
	n := varint.Uint64.Marshal(seq, buf)
	core.LemmaRecordMUS.Marshal(*record, buf[n:])
	return buf
}

// UnmarshalLemma deserializes a LemmaRecord and its insertion sequence.
func UnmarshalLemma(data []byte) (uint64, *core.LemmaRecord, error) {
	seq, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	record, _, err := core.LemmaRecordMUS.Unmarshal(data[n:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return seq, &record, nil
}

// MarshalMetadata serializes IndexMetadata to bytes.
func MarshalMetadata(meta *core.IndexMetadata) []byte {
	buf := make([]byte, core.IndexMetadataMUS.Size(*meta))
	core.IndexMetadataMUS.Marshal(*meta, buf)
	return buf
}

// UnmarshalMetadata deserializes IndexMetadata from bytes.
func UnmarshalMetadata(data []byte) (*core.IndexMetadata, error) {
	meta, _, err := core.IndexMetadataMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &meta, nil
}
