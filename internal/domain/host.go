package domain

// Family groups distributions by the installation procedure they share.
type Family string

const (
	FamilyDebian  Family = "debian"
	FamilyRHEL    Family = "rhel"
	FamilyAmazon  Family = "amazon"
	FamilyUnknown Family = "unknown"
)

// SupportedDistros is the set named in unsupported-OS errors.
var SupportedDistros = []string{
	"Ubuntu", "Debian",
	"RHEL", "CentOS", "Rocky Linux", "AlmaLinux",
	"Amazon Linux",
}

// HostProfile describes the detected OS. Read once at startup, immutable after.
type HostProfile struct {
	ID         string
	VersionID  string
	PrettyName string
	Family     Family
}
