package companies

import (
	"fmt"

	"github.com/odyssey-erp/biztime/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when no company has the requested code.
	ErrNotFound = fmt.Errorf("%w: company", httpx.ErrNotFound)
	// ErrDuplicate is returned when the derived code or the name is taken.
	ErrDuplicate = fmt.Errorf("%w: company", httpx.ErrDuplicate)
	// ErrValidation is returned when required fields are missing.
	ErrValidation = fmt.Errorf("%w: company", httpx.ErrValidation)
)
