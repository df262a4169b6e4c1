package reconcile

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// reconcileJSON patches the document in place so key order, unknown fields
// and number lexemes are kept, then re-indents with two spaces.
func reconcileJSON(content string, resolved []ServerConfig, endpoint string) (string, bool) {
	doc := strings.TrimSpace(strings.TrimPrefix(content, "\uFEFF"))
	if !gjson.Valid(doc) {
		return "", false
	}
	if !gjson.Parse(doc).IsObject() {
		return "", false
	}

	var entries []string
	if servers := gjson.Get(doc, "servers"); servers.IsArray() {
		for _, entry := range servers.Array() {
			entries = append(entries, entry.Raw)
		}
	}

	var err error
	switch {
	case len(entries) > 0:
		current := make([]string, len(entries))
		for i, raw := range entries {
			current[i] = jsonServerURL(raw)
		}
		offset, n := overwriteRange(current, resolved, endpoint)
		for i := 0; i < n; i++ {
			raw := entries[offset+i]
			if !gjson.Parse(raw).IsObject() {
				continue
			}
			entries[offset+i], err = sjson.Set(raw, "url", resolved[i].URL)
			if err != nil {
				return "", false
			}
		}
		if endpoint != "" && !jsonHasServer(entries, endpoint) {
			entries = append([]string{jsonServerEntry(endpoint)}, entries...)
		}
		doc, err = sjson.SetRaw(doc, "servers", "["+strings.Join(entries, ",")+"]")
	case endpoint != "":
		doc, err = sjson.SetRaw(doc, "servers", "["+jsonServerEntry(endpoint)+"]")
	}
	if err != nil {
		return "", false
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(doc), "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}

func jsonServerURL(raw string) string {
	if u := gjson.Get(raw, "url"); u.Type == gjson.String {
		return u.String()
	}
	return ""
}

func jsonHasServer(entries []string, endpoint string) bool {
	for _, raw := range entries {
		if u := jsonServerURL(raw); u != "" && normalizeURL(u) == endpoint {
			return true
		}
	}
	return false
}

func jsonServerEntry(u string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(ServerConfig{URL: u})
	return strings.TrimSpace(buf.String())
}
