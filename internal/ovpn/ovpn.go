// Package ovpn holds the records exchanged with the OpenVPN tool and the
// rules the panel applies to them.
package ovpn

import (
	"encoding/json"
	"path"
	"regexp"
	"strconv"
	"strings"

	"openvpn-webui/internal/diff"
)

// Superuser may manage every certificate.
const Superuser = "root"

// DefaultNameStem is used for suggested names when no users are selected.
const DefaultNameStem = "myCertificate"

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Catalogue enumerates the legal values of select-type settings.
type Catalogue struct {
	Protocol   []string `json:"protocol"`
	Device     []string `json:"device"`
	LogLevel   []string `json:"loglevel"`
	DNSServer  []string `json:"DNS_server"`
	Interfaces []string `json:"gateway"`
	Users      []string `json:"users"`
}

// Certificate is a client certificate known to the tool.
type Certificate struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

// Allowed reports whether viewer may download or delete c.
func (c Certificate) Allowed(viewer string) bool {
	if len(c.Users) == 0 || viewer == Superuser {
		return true
	}
	for _, user := range c.Users {
		if user == viewer {
			return true
		}
	}
	return false
}

// DownloadResult is the answer of the download subcommand.
type DownloadResult struct {
	Zip string `json:"zip"`
}

// Archive returns the base name of the archive path.
func (d DownloadResult) Archive() string {
	if d.Zip == "" {
		return ""
	}
	return path.Base(d.Zip)
}

// SanitizeName replaces every character outside [A-Za-z0-9] with '_'.
func SanitizeName(name string) string {
	return invalidNameChars.ReplaceAllString(name, "_")
}

// SuggestName returns a name absent from existing: the users joined by '_'
// (or DefaultNameStem), with 1, 2, ... appended until unique.
func SuggestName(users []string, existing map[string]struct{}) string {
	base := DefaultNameStem
	if len(users) > 0 {
		base = strings.Join(users, "_")
	}
	name := base
	for i := 1; ; i++ {
		if _, taken := existing[name]; !taken {
			return name
		}
		name = base + strconv.Itoa(i)
	}
}

// DecodeRecord parses a JSON object. Anything else yields an empty record.
func DecodeRecord(raw string) diff.Record {
	var record diff.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil || record == nil {
		return diff.Record{}
	}
	return record
}

// DecodeCatalogue parses getopt output. Anything else yields an empty catalogue.
func DecodeCatalogue(raw string) Catalogue {
	var catalogue Catalogue
	if err := json.Unmarshal([]byte(raw), &catalogue); err != nil {
		return Catalogue{}
	}
	return catalogue
}

// DecodeCertificates parses the certificate listing.
func DecodeCertificates(raw string) []Certificate {
	var certs []Certificate
	if err := json.Unmarshal([]byte(raw), &certs); err != nil {
		return nil
	}
	for i := range certs {
		if certs[i].Users == nil {
			certs[i].Users = []string{}
		}
	}
	return certs
}

// DecodeDownload parses download output.
func DecodeDownload(raw string) DownloadResult {
	var result DownloadResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return DownloadResult{}
	}
	return result
}
