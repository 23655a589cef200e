// Package scope splits the workload into independent scopes, sizes and
// buckets them into process groups, persists them as scope files and runs
// them on a bounded worker pool.
package scope

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrMismatchedKeys is returned when the parallel key lists of a scope have
// different lengths.
var ErrMismatchedKeys = errors.New("scope key lists must have the same length")

// Kind is the source system a scope reads from.
type Kind string

const (
	KindSalesOrder   Kind = "salesorder"
	KindSoldTo       Kind = "soldto"
	KindFirmographic Kind = "firmographic"
	KindKeepstock    Kind = "keepstock"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSalesOrder, KindSoldTo, KindFirmographic, KindKeepstock:
		return k, nil
	}
	return "", errors.Errorf("unknown scope kind %q", s)
}

// Key is one row of a scope. Which fields are set depends on the kind:
// sales orders use organization and state, sold-to accounts organization and
// zip3, firmographics state and zip3, keepstock the account.
type Key struct {
	OrganizationID string `json:"organization_id,omitempty"`
	State          string `json:"state,omitempty"`
	Zip3           string `json:"zip3,omitempty"`
	Account        string `json:"account,omitempty"`
}

// Scope is a unit of work: a set of keys of one kind, stored as parallel
// lists.
type Scope struct {
	Kind            Kind     `json:"kind"`
	OrganizationIDs []string `json:"organization_ids,omitempty"`
	States          []string `json:"states,omitempty"`
	Zip3s           []string `json:"zip3s,omitempty"`
	Accounts        []string `json:"accounts,omitempty"`
	// Incremental restricts the scope to records without a location yet.
	Incremental bool `json:"incremental"`
}

// New builds a scope of kind from keys.
func New(kind Kind, keys []Key, incremental bool) (Scope, error) {
	s := Scope{Kind: kind, Incremental: incremental}
	for _, k := range keys {
		switch kind {
		case KindSalesOrder:
			s.OrganizationIDs = append(s.OrganizationIDs, k.OrganizationID)
			s.States = append(s.States, k.State)
		case KindSoldTo:
			s.OrganizationIDs = append(s.OrganizationIDs, k.OrganizationID)
			s.Zip3s = append(s.Zip3s, k.Zip3)
		case KindFirmographic:
			s.States = append(s.States, k.State)
			s.Zip3s = append(s.Zip3s, k.Zip3)
		case KindKeepstock:
			s.Accounts = append(s.Accounts, k.Account)
		default:
			return Scope{}, errors.Errorf("unknown scope kind %q", kind)
		}
	}
	return s, s.Validate()
}

// Validate checks that the key lists the kind needs are present and aligned.
func (s Scope) Validate() error {
	var lists [][]string
	switch s.Kind {
	case KindSalesOrder:
		lists = [][]string{s.OrganizationIDs, s.States}
	case KindSoldTo:
		lists = [][]string{s.OrganizationIDs, s.Zip3s}
	case KindFirmographic:
		lists = [][]string{s.States, s.Zip3s}
	case KindKeepstock:
		lists = [][]string{s.Accounts}
	default:
		return errors.Errorf("unknown scope kind %q", s.Kind)
	}
	for _, l := range lists[1:] {
		if len(l) != len(lists[0]) {
			return errors.Wrapf(ErrMismatchedKeys, "%s scope", s.Kind)
		}
	}
	return nil
}

// Len is the number of keys.
func (s Scope) Len() int {
	switch s.Kind {
	case KindFirmographic:
		return len(s.States)
	case KindKeepstock:
		return len(s.Accounts)
	}
	return len(s.OrganizationIDs)
}

// Keys returns the scope rows.
func (s Scope) Keys() []Key {
	out := make([]Key, s.Len())
	for i := range out {
		out[i] = Key{
			OrganizationID: at(s.OrganizationIDs, i),
			State:          at(s.States, i),
			Zip3:           at(s.Zip3s, i),
			Account:        at(s.Accounts, i),
		}
	}
	return out
}

func (s Scope) String() string {
	keys := s.Keys()
	if len(keys) == 1 {
		k := keys[0]
		return fmt.Sprintf("%s[%s]", s.Kind, strings.Join(nonEmpty(k.OrganizationID, k.State, k.Zip3, k.Account), "/"))
	}
	return fmt.Sprintf("%s[%d keys]", s.Kind, len(keys))
}

func at(l []string, i int) string {
	if i < len(l) {
		return l[i]
	}
	return ""
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
