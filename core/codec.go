package core

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// LemmaRecordMUS is the binary codec for LemmaRecord.
var LemmaRecordMUS = lemmaRecordMUS{}

// IndexMetadataMUS is the binary codec for IndexMetadata.
var IndexMetadataMUS = indexMetadataMUS{}

type lemmaRecordMUS struct{}

func (lemmaRecordMUS) Marshal(v LemmaRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += ord.String.Marshal(v.Location.FilePath, bs[n:])
	line, hasLine := v.Location.Line()
	n += ord.Bool.Marshal(hasLine, bs[n:])
	if hasLine {
		n += varint.Uint64.Marshal(uint64(line), bs[n:])
	}
	n += ord.String.Marshal(v.Documentation, bs[n:])
	n += ord.String.Marshal(v.Signature, bs[n:])
	n += marshalStrings(v.Requires, bs[n:])
	n += marshalStrings(v.Ensures, bs[n:])
	n += marshalStrings(v.Decreases, bs[n:])
	n += varint.Uint64.Marshal(uint64(v.Origin), bs[n:])
	n += ord.String.Marshal(v.SymbolID, bs[n:])
	vals, present := v.Embedding.Values()
	n += ord.Bool.Marshal(present, bs[n:])
	if present {
		n += marshalVector(vals, bs[n:])
	}
	return n
}

func (lemmaRecordMUS) Unmarshal(bs []byte) (v LemmaRecord, n int, err error) {
	var n1 int
	if v.Name, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	var path string
	if path, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Location = NewSourceLocation(path)
	var hasLine bool
	if hasLine, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if hasLine {
		var line uint64
		if line, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
		v.Location = v.Location.WithLine(int(line))
	}
	if v.Documentation, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Signature, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Requires, n1, err = unmarshalStrings(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Ensures, n1, err = unmarshalStrings(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Decreases, n1, err = unmarshalStrings(bs[n:]); err != nil {
		return
	}
	n += n1
	var origin uint64
	if origin, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Origin = Origin(origin)
	if v.SymbolID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var present bool
	if present, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if present {
		var vals []float32
		if vals, n1, err = unmarshalVector(bs[n:]); err != nil {
			return
		}
		n += n1
		v.Embedding = Embedding{values: vals, present: true}
	}
	return
}

func (lemmaRecordMUS) Size(v LemmaRecord) (size int) {
	size = ord.String.Size(v.Name)
	size += ord.String.Size(v.Location.FilePath)
	line, hasLine := v.Location.Line()
	size += ord.Bool.Size(hasLine)
	if hasLine {
		size += varint.Uint64.Size(uint64(line))
	}
	size += ord.String.Size(v.Documentation)
	size += ord.String.Size(v.Signature)
	size += sizeStrings(v.Requires)
	size += sizeStrings(v.Ensures)
	size += sizeStrings(v.Decreases)
	size += varint.Uint64.Size(uint64(v.Origin))
	size += ord.String.Size(v.SymbolID)
	vals, present := v.Embedding.Values()
	size += ord.Bool.Size(present)
	if present {
		size += sizeVector(vals)
	}
	return size
}

type indexMetadataMUS struct{}

func (indexMetadataMUS) Marshal(v IndexMetadata, bs []byte) (n int) {
	n = ord.String.Marshal(v.Version, bs)
	n += varint.Uint64.Marshal(uint64(v.CreatedAt.UnixMicro()), bs[n:])
	n += varint.Uint64.Marshal(uint64(v.Dimension), bs[n:])
	n += ord.String.Marshal(v.EmbeddingModel, bs[n:])
	n += ord.String.Marshal(v.RepoRoot, bs[n:])
	n += varint.Uint64.Marshal(uint64(v.Count), bs[n:])
	return n
}

func (indexMetadataMUS) Unmarshal(bs []byte) (v IndexMetadata, n int, err error) {
	var n1 int
	if v.Version, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	var micros, dim, count uint64
	if micros, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.CreatedAt = time.UnixMicro(int64(micros)).UTC()
	if dim, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Dimension = int(dim)
	if v.EmbeddingModel, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.RepoRoot, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if count, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Count = int(count)
	return
}

func (indexMetadataMUS) Size(v IndexMetadata) (size int) {
	size = ord.String.Size(v.Version)
	size += varint.Uint64.Size(uint64(v.CreatedAt.UnixMicro()))
	size += varint.Uint64.Size(uint64(v.Dimension))
	size += ord.String.Size(v.EmbeddingModel)
	size += ord.String.Size(v.RepoRoot)
	size += varint.Uint64.Size(uint64(v.Count))
	return size
}

func marshalStrings(s []string, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(s)), bs)
	for _, str := range s {
		n += ord.String.Marshal(str, bs[n:])
	}
	return n
}

func unmarshalStrings(bs []byte) (s []string, n int, err error) {
	length, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	s = make([]string, 0, length)
	for range length {
		str, n1, err := ord.String.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		s = append(s, str)
	}
	return s, n, nil
}

func sizeStrings(s []string) (size int) {
	size = varint.Uint64.Size(uint64(len(s)))
	for _, str := range s {
		size += ord.String.Size(str)
	}
	return size
}

func marshalVector(vec []float32, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(vec)), bs)
	for _, f := range vec {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (vec []float32, n int, err error) {
	length, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	vec = make([]float32, 0, length)
	for range length {
		bits, n1, err := varint.Uint32.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		vec = append(vec, math.Float32frombits(bits))
	}
	return vec, n, nil
}

func sizeVector(vec []float32) (size int) {
	size = varint.Uint64.Size(uint64(len(vec)))
	for _, f := range vec {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}
