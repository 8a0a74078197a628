package repository

import (
	"encoding/json"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
)

// marshalDetails encodes authorization_details for a JSONB column. An empty
// set is stored as SQL NULL.
func marshalDetails(details []domain.AuthorizationDetail) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	return json.Marshal(details)
}

func unmarshalDetails(raw []byte) ([]domain.AuthorizationDetail, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var details []domain.AuthorizationDetail
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// seconds converts a stored integer column to a duration
func seconds(v int64) time.Duration {
	return time.Duration(v) * time.Second
}
