package federation

import (
	"fmt"
	"regexp"

	"github.com/deemkeen/versiond/util"
)

// Filters are moderation patterns. A match drops the entity without
// telling the sender.
type Filters struct {
	Note        []*regexp.Regexp
	Username    []*regexp.Regexp
	DisplayName []*regexp.Regexp
	Bio         []*regexp.Regexp
}

func NewFilters(conf *util.AppConfig) (*Filters, error) {
	f := &Filters{}
	var err error
	if f.Note, err = compileAll("note", conf.Filters.Note); err != nil {
		return nil, err
	}
	if f.Username, err = compileAll("username", conf.Filters.Username); err != nil {
		return nil, err
	}
	if f.DisplayName, err = compileAll("displayName", conf.Filters.DisplayName); err != nil {
		return nil, err
	}
	if f.Bio, err = compileAll("bio", conf.Filters.Bio); err != nil {
		return nil, err
	}
	return f, nil
}

func compileAll(name string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s filter %q: %w", name, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, values ...string) bool {
	for _, re := range res {
		for _, v := range values {
			if v != "" && re.MatchString(v) {
				return true
			}
		}
	}
	return false
}

func (f *Filters) MatchNote(content, subject string) bool {
	return f != nil && matchAny(f.Note, content, subject)
}

func (f *Filters) MatchUser(username, displayName, bio string) bool {
	if f == nil {
		return false
	}
	return matchAny(f.Username, username) ||
		matchAny(f.DisplayName, displayName) ||
		matchAny(f.Bio, bio)
}
