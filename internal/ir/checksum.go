package ir

import (
	"crypto/sha256"
	"fmt"
)

// Checksum computes the source checksum of a workflow: the SHA-256 of its
// canonical JSON, rendered as "sha256:<64 lowercase hex>".
//
// The loss map is excluded from the hash. Side-cars embed this checksum, so
// hashing the loss map would make the value self-referential.
func Checksum(w *Workflow) (string, error) {
	stripped := *w
	stripped.LossMap = nil
	canon, err := CanonicalJSON(&stripped)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", sha256.Sum256(canon)), nil
}
