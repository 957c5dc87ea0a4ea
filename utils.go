package gacha

import (
	"crypto/rand"
	"fmt"
	"time"
)

// ValidateCount validates the size of a draw batch
func ValidateCount(count int) error {
	if count <= 0 || count > MaxBatchSize {
		return ErrInvalidCount
	}
	return nil
}

// ValidateQuestID checks id against the quest catalog
func ValidateQuestID(id int, catalog []Quest) error {
	for _, q := range catalog {
		if q.ID == id {
			return nil
		}
	}
	return ErrUnknownQuest
}

// invalidParams wraps a validation failure as a rejected operation
func invalidParams(op string, cause error) *GachaError {
	return NewRejectedError(ErrCodeInvalidParameters, op, "invalid parameters").
		WithDetails(cause.Error()).
		WithCause(cause)
}

// generateLockValue generates a unique lock value using crypto/rand
func generateLockValue() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based value if crypto/rand fails
		return fmt.Sprintf("lock_%d", time.Now().UnixNano())
	}

	const hexChars = "0123456789abcdef"
	result := make([]byte, 32)
	for i, b := range bytes {
		result[i*2] = hexChars[b>>4]
		result[i*2+1] = hexChars[b&0x0f]
	}

	return string(result)
}
