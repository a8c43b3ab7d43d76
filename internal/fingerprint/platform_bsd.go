//go:build unix && !linux && !darwin

package fingerprint

const nameEnvVar = "HOSTNAME"

func identityStrategies(runner Runner) []Strategy {
	return []Strategy{
		&Query{Method: "sysctl", Command: "sysctl", Args: []string{"-n", "kern.hostuuid"}, Parse: SingleValue, Runner: runner},
		&Query{Method: "kenv", Command: "kenv", Args: []string{"-q", "smbios.system.uuid"}, Parse: SingleValue, Runner: runner},
		&Query{Method: "hostid", Command: "cat", Args: []string{"/etc/hostid"}, Parse: SingleValue, Runner: runner},
	}
}

func nameStrategies(runner Runner) []Strategy {
	return []Strategy{
		&Query{Method: "hostname", Command: "hostname", Parse: SingleValue, Runner: runner},
		unameStrategy{},
	}
}
