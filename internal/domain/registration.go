package domain

// RegistrationRequest holds everything the in-container registration command
// needs. Constructed once, used once, discarded.
type RegistrationRequest struct {
	ConsoleHost   string
	ConsolePort   int
	ActivationKey string
	EngineName    string
}

// Outcome is the terminal result of a registration run.
type Outcome struct {
	Code    int
	Message string
}
