// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scopecrawl

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// ScopeRule admits URLs whose host matches Host and whose path starts with PathPrefix.
// Host is a glob such as "*.ics.uci.edu"; an empty PathPrefix admits every path.
type ScopeRule struct {
	Host       string `yaml:"host"`
	PathPrefix string `yaml:"path_prefix"`
}

// DefaultScopeRules are the UCI domains the crawler was built for
var DefaultScopeRules = []ScopeRule{
	{Host: "*.ics.uci.edu"},
	{Host: "*.cs.uci.edu"},
	{Host: "*.informatics.uci.edu"},
	{Host: "*.stat.uci.edu"},
	{Host: "today.uci.edu", PathPrefix: "/department/information_computer_sciences/"},
}

// DefaultDeniedExtensions lists file extensions that are never worth fetching
var DefaultDeniedExtensions = []string{
	"css", "js", "bmp", "gif", "jpe", "jpeg", "jpg", "ico", "png", "tif", "tiff",
	"mid", "mp2", "mp3", "mp4", "wav", "avi", "mov", "mpeg", "ram", "m4v", "mkv",
	"ogg", "ogv", "pdf", "ps", "eps", "tex", "ppt", "pptx", "doc", "docx", "xls",
	"xlsx", "names", "data", "dat", "exe", "bz2", "tar", "msi", "bin", "7z", "psd",
	"dmg", "iso", "apk", "epub", "dll", "cnf", "tgz", "sha1", "thmx", "mso", "arff",
	"rtf", "jar", "csv", "r", "py", "rkt", "ss", "sas", "java", "in", "scm", "odc",
	"m", "rm", "smil", "wmv", "swf", "wma", "zip", "rar", "gz",
	"ics", "ical", "ifb", "vcs",
}

type compiledRule struct {
	host   glob.Glob
	prefix string
}

// Scope decides whether a URL may be crawled. It is immutable after construction
// and safe for concurrent use.
type Scope struct {
	rules  []compiledRule
	denied map[string]struct{}
}

// NewScope compiles scope rules. Rules with an empty host are skipped; if no
// usable rule remains ErrNoScopeRules is returned.
func NewScope(rules []ScopeRule, deniedExtensions []string) (*Scope, error) {
	s := &Scope{denied: make(map[string]struct{}, len(deniedExtensions))}

	for _, r := range rules {
		host := strings.ToLower(strings.TrimSpace(r.Host))
		if host == "" {
			continue
		}
		g, err := glob.Compile(host)
		if err != nil {
			return nil, fmt.Errorf("invalid scope host pattern %q: %w", r.Host, err)
		}
		s.rules = append(s.rules, compiledRule{
			host:   g,
			prefix: strings.TrimRight(strings.TrimSpace(r.PathPrefix), "/"),
		})
	}
	if len(s.rules) == 0 {
		return nil, ErrNoScopeRules
	}

	for _, ext := range deniedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			s.denied[ext] = struct{}{}
		}
	}
	return s, nil
}

// InScope reports whether rawURL is an http(s) URL matching at least one rule
// and not carrying a denied file extension. Malformed URLs are out of scope.
func (s *Scope) InScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if s.deniedExtension(u.Path) {
		return false
	}

	p := strings.TrimRight(u.Path, "/")
	for _, r := range s.rules {
		if !r.host.Match(host) {
			continue
		}
		if r.prefix == "" || p == r.prefix || strings.HasPrefix(p, r.prefix+"/") {
			return true
		}
	}
	return false
}

func (s *Scope) deniedExtension(p string) bool {
	last := path.Base(strings.TrimRight(strings.ToLower(p), "/"))
	ext := strings.TrimPrefix(path.Ext(last), ".")
	if ext == "" {
		return false
	}
	_, denied := s.denied[ext]
	return denied
}
