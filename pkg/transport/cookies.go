package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// cookieEntry is one persisted cookie together with the URL that set it
type cookieEntry struct {
	URL       string `json:"url"`
	SetCookie string `json:"set_cookie"`
}

// fileJar is an http.CookieJar persisted to a JSON file. Cookies are
// loaded when the jar is opened and written back by Save.
type fileJar struct {
	path string
	jar  *cookiejar.Jar

	mu      sync.Mutex
	entries map[string]cookieEntry
	dirty   bool
}

func openFileJar(path string) (*fileJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	fj := &fileJar{
		path:    path,
		jar:     jar,
		entries: make(map[string]cookieEntry),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return fj, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var entries []cookieEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", path, err)
	}

	for _, entry := range entries {
		u, err := url.Parse(entry.URL)
		if err != nil {
			continue
		}
		cookie, err := http.ParseSetCookie(entry.SetCookie)
		if err != nil {
			continue
		}
		jar.SetCookies(u, []*http.Cookie{cookie})
		fj.entries[entryKey(u, cookie)] = entry
	}

	return fj, nil
}

// SetCookies implements http.CookieJar
func (j *fileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()

	origin := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	for _, cookie := range cookies {
		key := entryKey(u, cookie)
		if cookie.MaxAge < 0 || (!cookie.Expires.IsZero() && cookie.Expires.Before(time.Now())) {
			delete(j.entries, key)
		} else {
			j.entries[key] = cookieEntry{URL: origin.String(), SetCookie: cookie.String()}
		}
		j.dirty = true
	}
}

// Cookies implements http.CookieJar
func (j *fileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Save writes the cookies to the jar file if they changed
func (j *fileJar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.dirty {
		return nil
	}

	keys := make([]string, 0, len(j.entries))
	for k := range j.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]cookieEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, j.entries[k])
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	if dir := filepath.Dir(j.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create cookie dir: %w", err)
		}
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}

	j.dirty = false
	return nil
}

func entryKey(u *url.URL, cookie *http.Cookie) string {
	domain := cookie.Domain
	if domain == "" {
		domain = u.Hostname()
	}
	path := cookie.Path
	if path == "" {
		path = "/"
	}
	return domain + ";" + path + ";" + cookie.Name
}
