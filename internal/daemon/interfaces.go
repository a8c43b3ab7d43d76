package daemon

// ShellClient is the daemon surface used by the CLI. It lets commands be
// tested without a running daemon.
type ShellClient interface {
	Close() error

	Ping() (*PingResponse, error)
	Shutdown() error
	Status() (*StatusResponse, error)

	Start() (*StartResponse, error)
	Stop() error

	Identity() (*IdentityResponse, error)
	Device() (*DeviceResponse, error)

	Logs(limit int) (*LogsResponse, error)
	StreamEvents(sources []string) (<-chan EventResult, error)
	StopEventStream()

	LicenseValidate(token, hwid string) (*LicenseValidateResponse, error)
	UpdateCheck() (*UpdateCheckResponse, error)
}

var _ ShellClient = (*Client)(nil)
