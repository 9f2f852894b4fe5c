package fixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Locator maps user-facing element keys to agent locators.
type Locator interface {
	Lookup(key string) (string, bool)
}

// ElementList is a Locator backed by a flat key → locator map.
type ElementList map[string]string

// Lookup implements Locator.
func (e ElementList) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// LoadElementList reads a yaml mapping of element keys to locators:
//
//	loginButton: ID::login.ok
//	userField: ID::login.user
func LoadElementList(path string) (ElementList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read element list %s: %w", path, err)
	}
	var list ElementList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse element list %s: %w", path, err)
	}
	if list == nil {
		list = ElementList{}
	}
	return list, nil
}
