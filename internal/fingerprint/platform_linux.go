//go:build linux

package fingerprint

const nameEnvVar = "HOSTNAME"

func identityStrategies(runner Runner) []Strategy {
	return []Strategy{
		&Query{Method: "machine-id", Command: "cat", Args: []string{"/etc/machine-id"}, Parse: SingleValue, Runner: runner},
		&Query{Method: "dbus", Command: "cat", Args: []string{"/var/lib/dbus/machine-id"}, Parse: SingleValue, Runner: runner},
		&Query{Method: "dmi", Command: "cat", Args: []string{"/sys/class/dmi/id/product_uuid"}, Parse: SingleValue, Runner: runner},
	}
}

func nameStrategies(runner Runner) []Strategy {
	return []Strategy{
		&Query{Method: "hostname", Command: "hostname", Parse: SingleValue, Runner: runner},
		unameStrategy{},
	}
}
