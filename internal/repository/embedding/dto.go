package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// Hash field names for one stored embedding.
const (
	fieldProvider    = "provider"
	fieldModel       = "model"
	fieldDimensions  = "dimensions"
	fieldVector      = "vector"
	fieldContentHash = "content_hash"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

// buildHashFields flattens a record into hash fields. The vector is stored
// as raw little-endian float32 bytes, 4 bytes per component.
func buildHashFields(rec *domain.EmbeddingRecord) map[string]string {
	return map[string]string{
		fieldProvider:    rec.Provider,
		fieldModel:       rec.Model,
		fieldDimensions:  strconv.Itoa(rec.Dimensions),
		fieldVector:      vectorToBytes(rec.Vector),
		fieldContentHash: rec.ContentHash,
		fieldCreatedAt:   strconv.FormatInt(rec.CreatedAt.Unix(), 10),
		fieldUpdatedAt:   strconv.FormatInt(rec.UpdatedAt.Unix(), 10),
	}
}

func parseHashFields(contentID int64, m map[string]string) (domain.EmbeddingRecord, error) {
	vec, err := bytesToVector(m[fieldVector])
	if err != nil {
		return domain.EmbeddingRecord{}, fmt.Errorf("content %d: %w", contentID, err)
	}

	dims, _ := strconv.Atoi(m[fieldDimensions])

	return domain.EmbeddingRecord{
		ContentID:   contentID,
		Provider:    m[fieldProvider],
		Model:       m[fieldModel],
		Dimensions:  dims,
		Vector:      vec,
		ContentHash: m[fieldContentHash],
		CreatedAt:   parseUnix(m[fieldCreatedAt]),
		UpdatedAt:   parseUnix(m[fieldUpdatedAt]),
	}, nil
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) ([]float32, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(s))
	}
	data := []byte(s)
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
