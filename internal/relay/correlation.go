// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"fmt"
	"mime"
	"strings"

	"github.com/ManuGH/netguard/internal/guard"
)

// FlexrepMediaType is the Content-Type master servers use for replication.
const FlexrepMediaType = "multipart/flexible-replication"

// CorrelationID returns the boundary parameter of a
// "multipart/flexible-replication; boundary=<id>" content type. The value is
// used verbatim as the envelope file name stem, so it must also be a valid
// single path element.
func CorrelationID(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", fmt.Errorf("%w: no content type", ErrMissingCorrelationID)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingCorrelationID, err)
	}
	if mediaType != FlexrepMediaType {
		return "", fmt.Errorf("%w: content type %q is not %s", ErrMissingCorrelationID, mediaType, FlexrepMediaType)
	}
	id, ok := params["boundary"]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: no boundary parameter", ErrMissingCorrelationID)
	}
	if err := guard.ValidateID(id); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingCorrelationID, err)
	}
	return id, nil
}
