package ledgersync

import (
	"fmt"
	"regexp"
	"strings"
)

// idPattern accepts identifiers that are safe to embed in a file path:
// they start with an alphanumeric and contain only alphanumerics, dot,
// underscore and dash.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateID checks that an identifier is path-safe. Every file-backed
// store must call this before an identifier ever touches the disk.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("identifier is empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("identifier %q is too long (%d > 128)", id, len(id))
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("identifier %q must not contain %q", id, "..")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("identifier %q contains unsafe characters", id)
	}
	return nil
}
