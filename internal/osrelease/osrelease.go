// Package osrelease identifies the host distribution from /etc/os-release.
package osrelease

import (
	"bufio"
	"os"
	"strings"

	"github.com/opsforge/scannerctl/internal/domain"
)

const DefaultPath = "/etc/os-release"

// Detect reads the standard OS descriptor. A missing descriptor is terminal
// for the whole workflow, so the error carries the path.
func Detect() (domain.HostProfile, error) {
	return DetectFrom(DefaultPath)
}

// DetectFrom parses the descriptor at path and resolves the distribution
// family. No side effects.
func DetectFrom(path string) (domain.HostProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.HostProfile{}, domain.ErrNoOSRelease{Path: path}
		}
		return domain.HostProfile{}, err
	}
	defer f.Close()

	fields := parse(f)

	profile := domain.HostProfile{
		ID:         fields["ID"],
		VersionID:  fields["VERSION_ID"],
		PrettyName: fields["PRETTY_NAME"],
	}
	profile.Family = resolveFamily(fields["ID"], fields["ID_LIKE"])

	if profile.Family == domain.FamilyUnknown {
		return profile, domain.ErrUnsupportedDistro{ID: profile.ID}
	}
	return profile, nil
}

// parse reads the flat KEY=value format; values may be double- or
// single-quoted.
func parse(f *os.File) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		fields[strings.TrimSpace(key)] = value
	}
	return fields
}

func resolveFamily(id, idLike string) domain.Family {
	if f := familyOf(id); f != domain.FamilyUnknown {
		return f
	}
	for _, like := range strings.Fields(idLike) {
		if f := familyOf(like); f != domain.FamilyUnknown {
			return f
		}
	}
	return domain.FamilyUnknown
}

func familyOf(id string) domain.Family {
	switch strings.ToLower(id) {
	case "ubuntu", "debian":
		return domain.FamilyDebian
	case "rhel", "centos", "rocky", "almalinux", "fedora":
		return domain.FamilyRHEL
	case "amzn":
		return domain.FamilyAmazon
	default:
		return domain.FamilyUnknown
	}
}
