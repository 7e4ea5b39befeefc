package token

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type ClaimSet struct {
	IsAdmin bool `json:"is_admin"`
}

// ClaimsPolicy maps an identity to the role claims it should carry.
type ClaimsPolicy interface {
	ClaimsFor(identity int64) ClaimSet
}

// AdminSet grants is_admin to a configured set of identities. Safe for
// concurrent use; Grant may be called after startup (admin bootstrap).
type AdminSet struct {
	mu     sync.RWMutex
	admins map[int64]struct{}
}

func NewAdminSet(ids ...int64) *AdminSet {
	set := &AdminSet{admins: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		set.admins[id] = struct{}{}
	}
	return set
}

func (a *AdminSet) Grant(ids ...int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		a.admins[id] = struct{}{}
	}
}

func (a *AdminSet) ClaimsFor(identity int64) ClaimSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.admins[identity]
	return ClaimSet{IsAdmin: ok}
}

type policyFile struct {
	Admins []int64 `yaml:"admins"`
}

func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func LoadAdminSet(path string, extra ...int64) (*AdminSet, error) {
	set := NewAdminSet(extra...)
	if strings.TrimSpace(path) == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read claims policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse claims policy file: %w", err)
	}
	set.Grant(file.Admins...)

	return set, nil
}
