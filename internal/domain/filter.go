package domain

import "strings"

// IsZero reports whether no filter field is populated.
func (f ContractFilter) IsZero() bool {
	return f.Query == "" && f.Status == "" && f.Type == "" && f.Category == "" &&
		f.Priority == "" && len(f.Tags) == 0 && f.From == nil && f.To == nil
}

// Matches reports whether a contract satisfies every populated filter
// field. Zero-valued fields are ignored. Both storage backends share this
// predicate so search behaves identically regardless of where the data
// lives.
func (f ContractFilter) Matches(c Contract) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.From != nil && c.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && c.CreatedAt.After(*f.To) {
		return false
	}
	for _, tag := range f.Tags {
		if !containsString(c.Tags, tag) {
			return false
		}
	}
	if f.Query != "" && !matchesQuery(c, f.Query) {
		return false
	}
	return true
}

// matchesQuery does a case-insensitive substring scan over the text
// fields a user would expect free-text search to cover, party names and
// emails included.
func matchesQuery(c Contract, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(c.ID), q) ||
		strings.Contains(strings.ToLower(c.Title), q) ||
		strings.Contains(strings.ToLower(c.Description), q) ||
		strings.Contains(strings.ToLower(c.Content), q) {
		return true
	}
	for _, p := range c.Parties {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Email), q) ||
			strings.Contains(strings.ToLower(p.Company), q) {
			return true
		}
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
