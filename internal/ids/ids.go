package ids

import "github.com/segmentio/ksuid"

// New returns a fresh sortable identifier. KSUIDs embed a timestamp, so
// catalog keys generated later always sort later.
func New() string {
	return ksuid.New().String()
}
