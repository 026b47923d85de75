package service

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/digkill/ValuationAPI/internal/models"
)

// ComputeKey hashes the decoded image bytes in order, each length-prefixed so
// boundaries cannot shift, followed by the JSON encoding of details.
func ComputeKey(images []models.Image, details models.PropertyDetails) string {
	h := sha256.New()
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(images)))
	h.Write(size[:])
	for _, img := range images {
		binary.BigEndian.PutUint64(size[:], uint64(len(img.Data)))
		h.Write(size[:])
		h.Write(img.Data)
	}
	// struct field order is fixed, so the encoding is stable
	encoded, _ := json.Marshal(details)
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil))
}
