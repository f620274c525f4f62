package archive

import (
	"fmt"
	"strings"

	"github.com/zen-systems/switchyard/pkg/router"
)

// KindDecision is the ref kind for archived routing decisions.
const KindDecision = "decision"

// ArchiveDecision stores d and returns its ref as "decision:<sha256>".
func (s *Store) ArchiveDecision(d router.RoutingDecision) (string, error) {
	ref, err := s.StoreObject(d, KindDecision)
	if err != nil {
		return "", err
	}
	return ref.String(), nil
}

// LoadDecision reads a decision back from a ref produced by ArchiveDecision.
func (s *Store) LoadDecision(ref string) (router.RoutingDecision, error) {
	kind, hash, ok := strings.Cut(ref, ":")
	if !ok || kind != KindDecision {
		return router.RoutingDecision{}, fmt.Errorf("not a decision ref: %q", ref)
	}
	var d router.RoutingDecision
	if err := s.Load(hash, &d); err != nil {
		return router.RoutingDecision{}, err
	}
	return d, nil
}
