package document

import (
	"fmt"
	"strings"
)

// MaxPathLen bounds document and accelerator paths.
const MaxPathLen = 4096

// ValidatePath rejects paths the engine must never see.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	case strings.IndexByte(path, 0) >= 0:
		return fmt.Errorf("%w: contains NUL byte", ErrInvalidPath)
	case len(path) > MaxPathLen:
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPathTooLong, len(path), MaxPathLen)
	}
	return nil
}
