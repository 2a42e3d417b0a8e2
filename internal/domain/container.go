package domain

type ContainerState string

const (
	StateRunning ContainerState = "running"
	StateStopped ContainerState = "stopped"
	StateAbsent  ContainerState = "absent"
)

// PortMapping maps a published host port to a container port.
type PortMapping struct {
	HostPort      int
	ContainerPort int
}

// ContainerSpec is the fixed configuration for the scanner container.
type ContainerSpec struct {
	Image         string
	Name          string
	RestartPolicy string
	Port          PortMapping
	// DataDir is the host path bind-mounted into MountPath.
	DataDir   string
	MountPath string
}
