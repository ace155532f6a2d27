package transport

// MissingHostError reports that neither an explicit host nor the
// process-wide default server yielded a usable transport host. It is
// fatal: no send is attempted and no partial state is left behind.
type MissingHostError struct{}

func (MissingHostError) Error() string {
	return "no SMTP server specified and no default server configured"
}

// Options are the explicit transport parameters supplied by the caller.
type Options struct {
	Host       string
	Port       int
	UseTLS     bool
	Credential *Credential
}

// Resolve determines the effective delivery target. An explicit host wins;
// otherwise defaultHost, a read-only snapshot of the process-wide default
// server, is used. If both are empty resolution fails with
// MissingHostError. Resolution is deterministic: equal inputs yield equal
// targets.
func Resolve(opts Options, defaultHost string) (Target, error) {
	host := opts.Host
	if host == "" {
		host = defaultHost
	}
	if host == "" {
		return Target{}, MissingHostError{}
	}

	return Target{
		Host:       host,
		Port:       opts.Port,
		UseTLS:     opts.UseTLS,
		Credential: opts.Credential,
		// Ambient identity applies only when no explicit credential was
		// given and the session is not secured.
		AmbientIdentity: opts.Credential == nil && !opts.UseTLS,
	}, nil
}
