package users

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

// keyPrefix starts every user property, as in Apache FtpServer's
// users.properties: ftpserver.user.<name>.<field>=<value>
const keyPrefix = "ftpserver.user."

// Recognised record fields.
const (
	fieldPassword      = "userpassword"
	fieldHomeDirectory = "homedirectory"
	fieldEnabled       = "enableflag"
	fieldWrite         = "writepermission"
	fieldUploadRate    = "uploadrate"
	fieldDownloadRate  = "downloadrate"
	fieldIdleTime      = "idletime"
	fieldGroups        = "groups"
)

// UserRecord is one entry of the credential file. Records are never mutated
// after loading; a reload replaces the whole set.
type UserRecord struct {
	// Name is the login name.
	Name string

	// PasswordDigest is compared according to the store's Encoding.
	PasswordDigest string

	// HomeDirectory is the absolute remote path the user is confined to.
	HomeDirectory string

	// Enabled is false for accounts that must not log in.
	Enabled bool

	// WritePermission allows mutating commands (STOR, MKD, DELE, RNFR...).
	WritePermission bool

	// MaxUploadRate and MaxDownloadRate are in bytes per second; 0 is unlimited.
	MaxUploadRate   uint
	MaxDownloadRate uint

	// IdleTime is the per-user idle timeout in seconds; 0 uses the server default.
	IdleTime int

	// Groups lists the remote groups of the user, main group first.
	Groups []string
}

// MainGroup returns the first group, or "" when the user has none.
func (r *UserRecord) MainGroup() string {
	if len(r.Groups) == 0 {
		return ""
	}
	return r.Groups[0]
}

// parseRecords builds the user map from loaded properties. Defaults follow
// Apache FtpServer: home "/", enabled, read-only, unlimited rates.
func parseRecords(p *properties.Properties) (map[string]*UserRecord, error) {
	fields := map[string]map[string]string{}
	for _, key := range p.Keys() {
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		rest := key[len(keyPrefix):]
		dot := strings.LastIndexByte(rest, '.')
		if dot <= 0 || dot == len(rest)-1 {
			return nil, fmt.Errorf("malformed user key %q", key)
		}
		name, field := rest[:dot], strings.ToLower(rest[dot+1:])
		value, _ := p.Get(key)
		if fields[name] == nil {
			fields[name] = map[string]string{}
		}
		fields[name][field] = strings.TrimSpace(value)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make(map[string]*UserRecord, len(fields))
	for _, name := range names {
		rec, err := parseRecord(name, fields[name])
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", name, err)
		}
		records[name] = rec
	}
	return records, nil
}

func parseRecord(name string, f map[string]string) (*UserRecord, error) {
	password, ok := f[fieldPassword]
	if !ok {
		return nil, fmt.Errorf("missing %s", fieldPassword)
	}

	rec := &UserRecord{
		Name:           name,
		PasswordDigest: password,
		HomeDirectory:  "/",
		Enabled:        true,
	}

	if home := f[fieldHomeDirectory]; home != "" {
		if !strings.HasPrefix(home, "/") {
			return nil, fmt.Errorf("%s must be absolute, got %q", fieldHomeDirectory, home)
		}
		rec.HomeDirectory = remote.Clean(home)
	}

	var err error
	if rec.Enabled, err = parseBool(f, fieldEnabled, true); err != nil {
		return nil, err
	}
	if rec.WritePermission, err = parseBool(f, fieldWrite, false); err != nil {
		return nil, err
	}
	if rec.MaxUploadRate, err = parseRate(f, fieldUploadRate); err != nil {
		return nil, err
	}
	if rec.MaxDownloadRate, err = parseRate(f, fieldDownloadRate); err != nil {
		return nil, err
	}
	if v := f[fieldIdleTime]; v != "" {
		if rec.IdleTime, err = strconv.Atoi(v); err != nil || rec.IdleTime < 0 {
			return nil, fmt.Errorf("invalid %s %q", fieldIdleTime, v)
		}
	}
	for _, g := range strings.Split(f[fieldGroups], ",") {
		if g = strings.TrimSpace(g); g != "" {
			rec.Groups = append(rec.Groups, g)
		}
	}
	return rec, nil
}

func parseBool(f map[string]string, field string, def bool) (bool, error) {
	v, ok := f[field]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", field, v)
	}
	return b, nil
}

func parseRate(f map[string]string, field string) (uint, error) {
	v := f[field]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, v)
	}
	return uint(n), nil
}
